// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads the engine configuration.
//
//	log:
//	  level: info
//	  dbPath: /var/lib/mediamux/logs.db
//	  stdout: true
//	container: mp4
//	codecs:
//	  aac:
//	    bitrate: "128000"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mediamux/pkg/compression"
	"mediamux/pkg/container"
	"mediamux/pkg/log"

	"gopkg.in/yaml.v3"
)

// Errors.
var (
	ErrUnknownCodec     = errors.New("unknown codec")
	ErrPathNotAbsolute  = errors.New("path is not absolute")
	ErrEmptyCodecParams = errors.New("codec has no parameters")
)

// LogConfig log configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	DBPath string `yaml:"dbPath"`
	Stdout *bool  `yaml:"stdout"`
}

// Config stores the engine configuration.
type Config struct {
	Log       LogConfig                    `yaml:"log"`
	Container string                       `yaml:"container"`
	Codecs    map[string]map[string]string `yaml:"codecs"`

	LogLevel      log.Level      `yaml:"-"`
	ContainerType container.Type `yaml:"-"`
	ConfigDir     string         `yaml:"-"`

	codecParams map[compression.ID]map[string]string
}

// NewConfig returns a configuration parsed from configYAML.
// Relative defaults are resolved from the directory of configPath.
func NewConfig(configPath string, configYAML []byte) (*Config, error) {
	var c Config

	if err := yaml.Unmarshal(configYAML, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	c.ConfigDir = filepath.Dir(configPath)

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.DBPath == "" {
		c.Log.DBPath = filepath.Join(c.ConfigDir, "logs.db")
	}
	if c.Log.Stdout == nil {
		stdout := true
		c.Log.Stdout = &stdout
	}
	if c.Container == "" {
		c.Container = container.TypeMP4.String()
	}

	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	c.LogLevel = level

	ct, err := container.ParseType(c.Container)
	if err != nil {
		return nil, fmt.Errorf("container '%v': %w", c.Container, err)
	}
	c.ContainerType = ct

	if !filepath.IsAbs(c.Log.DBPath) {
		return nil, fmt.Errorf("dbPath '%v': %w", c.Log.DBPath, ErrPathNotAbsolute)
	}

	c.codecParams = make(map[compression.ID]map[string]string)
	for name, params := range c.Codecs {
		id, exist := compression.FromString(name)
		if !exist || id == compression.None {
			return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, name)
		}
		if len(params) == 0 {
			return nil, fmt.Errorf("%v: %w", name, ErrEmptyCodecParams)
		}
		c.codecParams[id] = params
	}

	return &c, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	configYAML, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}
	return NewConfig(path, configYAML)
}

// CodecParameters returns a copy of the parameters of codec id,
// nil if there are none.
func (c *Config) CodecParameters(id compression.ID) map[string]string {
	params, exist := c.codecParams[id]
	if !exist {
		return nil
	}
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return cp
}

// LogToStdout reports if logs should be printed.
func (c *Config) LogToStdout() bool {
	return c.Log.Stdout != nil && *c.Log.Stdout
}
