// Copyright 2025 Commonwealth Scientific and Industrial Research Organisation (CSIRO) ABN 41 687 119 230
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ivcap-works/eventrunner/pkg/adapter"
	"github.com/ivcap-works/eventrunner/storehttp"

	log "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ENV_PREFIX = "EVENTRUN"

const RELEASE_CHECK_URL = "https://github.com/ivcap-works/eventrunner/releases/latest"

// Max characters to limit name columns to
const MAX_NAME_COL_LEN = 30

// Names for config dir and file - stored in the os.UserConfigDir() directory
const CONFIG_FILE_DIR = "eventrunctl"
const CONFIG_FILE_NAME = "config.yaml"
const VERSION_CHECK_FILE_NAME = "vcheck.txt"
const CHECK_VERSION_INTERVAL = time.Duration(24 * time.Hour)

const DEFAULT_SERVICE_TIMEOUT_IN_SECONDS = 30

// flags
var (
	contextName string
	timeout     int
	debug       bool

	outputFormat string
	silent       bool
)

var logger *log.Logger

// Config is the persisted eventrunctl configuration. It holds one or more
// named store endpoints, one of which is marked active.
type Config struct {
	Version       string    `yaml:"version"`
	ActiveContext string    `yaml:"active-context"`
	Contexts      []Context `yaml:"contexts"`
}

// Context names a single event store deployment eventrunctl can talk to.
type Context struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Host string `yaml:"host"` // set Host header if necessary
}

var rootCmd = &cobra.Command{
	Use:   "eventrunctl",
	Short: "A command line tool to drive commands against an event store",
	Long: `eventrunctl folds aggregates from an event stream, hands them to a
command, and appends the resulting events back to the store under an
optimistic-concurrency precondition - retrying with backoff on conflict.`,
}

func Execute(version string) {
	rootCmd.Version = version
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&contextName, "context", "", "Store context (deployment) to use")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", DEFAULT_SERVICE_TIMEOUT_IN_SECONDS, "Max. number of seconds to wait for completion")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Set logging level to DEBUG")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Set format for displaying output [json, yaml]")
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false, "Do not show any progress information")
}

// initConfig builds the zap logger (DEBUG level with --debug, ERROR level
// otherwise) and runs the periodic check for a newer release.
func initConfig() {
	cfg := log.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stdout"}

	logLevel := zapcore.ErrorLevel
	if debug {
		logLevel = zapcore.DebugLevel
	}
	cfg.Level = log.NewAtomicLevelAt(logLevel)
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	SetLogger(l)

	checkForUpdates(rootCmd.Version)
}

// CreateStore builds an eventsourcing store.EventStore wired to the active
// context's URL, registered with the event types the current command needs.
func CreateStore(reg *storehttp.Registry) *storehttp.Store {
	ctxt := GetActiveContext()

	logger.Debug("store config", log.String("url", ctxt.URL))

	var headers *map[string]string
	if ctxt.Host != "" {
		headers = &(map[string]string{"Host": ctxt.Host})
	}

	return storehttp.New(storehttp.Config{
		ConnCtxt: &adapter.ConnectionCtxt{
			URL:        ctxt.URL,
			TimeoutSec: timeout,
			Headers:    headers,
		},
		Registry: reg,
		Logger:   logger,
	})
}

func GetActiveContext() (ctxt *Context) {
	return GetContext(contextName, true)
}

func GetContext(name string, defaultToActiveContext bool) (ctxt *Context) {
	var err error
	ctxt, err = GetContextWithError(name, defaultToActiveContext)
	if err != nil {
		cobra.CheckErr(err)
	}
	return
}

func GetContextWithError(name string, defaultToActiveContext bool) (ctxt *Context, err error) {
	config, configFile := ReadConfigFile(true)
	if name == "" && defaultToActiveContext {
		name = config.ActiveContext
	}
	if name == "" {
		return nil, errors.New("cannot find suitable context. Use '--context' or set default via 'context' command")
	}
	for idx, d := range config.Contexts {
		if d.Name == name {
			return &config.Contexts[idx], nil // golang loop reuse same var, don't use "&d"
		}
	}
	return nil, fmt.Errorf("unknown context '%s' in config '%s'", name, configFile)
}

func SetContext(ctxt *Context, failIfNotExist bool) {
	config, _ := ReadConfigFile(true)
	cxa := config.Contexts
	for i, c := range cxa {
		if c.Name == ctxt.Name {
			config.Contexts[i] = *ctxt
			WriteConfigFile(config)
			return
		}
	}
	if failIfNotExist {
		cobra.CheckErr(fmt.Sprintf("attempting to set/update non existing context '%s'", ctxt.Name))
	} else {
		config.Contexts = append(config.Contexts, *ctxt)
		if len(config.Contexts) == 1 {
			config.ActiveContext = ctxt.Name
		}
		WriteConfigFile(config)
	}
}

func ReadConfigFile(createIfNoConfig bool) (config *Config, configFile string) {
	configFile = GetConfigFilePath()
	var data []byte
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		if _, ok := err.(*os.PathError); ok {
			if createIfNoConfig {
				config = &Config{Version: "v1"}
				return
			}
			cobra.CheckErr("Config file does not exist. Please create the config file with the context command.")
		} else {
			cobra.CheckErr(fmt.Sprintf("Cannot read config file %s - %v", configFile, err))
		}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		cobra.CheckErr(fmt.Sprintf("problems parsing config file %s - %v", configFile, err))
		return
	}
	config = &cfg
	return
}

func WriteConfigFile(config *Config) {
	b, err := yaml.Marshal(config)
	if err != nil {
		cobra.CheckErr(fmt.Sprintf("cannot marshall content of config file - %v", err))
		return
	}
	configFile := GetConfigFilePath()
	if err = os.WriteFile(configFile, b, fs.FileMode(0600)); err != nil {
		cobra.CheckErr(fmt.Sprintf("cannot write to config file %s - %v", configFile, err))
	}
}

func GetConfigDir(createIfNoExist bool) (configDir string) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		cobra.CheckErr(fmt.Sprintf("Cannot find the user configuration directory - %v", err))
		return
	}
	configDir = userConfigDir + string(os.PathSeparator) + CONFIG_FILE_DIR
	if createIfNoExist {
		err = os.MkdirAll(configDir, 0750)
		if err != nil && !os.IsExist(err) {
			cobra.CheckErr(fmt.Sprintf("Could not create configuration directory %s - %v", configDir, err))
			return
		}
	}
	return
}

func GetConfigFilePath() (path string) {
	return makeConfigFilePath(CONFIG_FILE_NAME)
}

func makeConfigFilePath(fileName string) (path string) {
	configDir := GetConfigDir(true)
	path = configDir + string(os.PathSeparator) + fileName
	return
}

func NewTimeoutContext() (ctxt context.Context, cancel context.CancelFunc) {
	to := time.Now().Add(time.Duration(timeout) * time.Second)
	ctxt, cancel = context.WithDeadline(context.Background(), to)
	return
}

func Logger() *log.Logger {
	return logger
}

func SetLogger(l *log.Logger) {
	logger = l
}

func safeDate(t time.Time, humanizeOnly bool) string {
	if t.IsZero() {
		return "???"
	}
	h := humanize.Time(t)
	if humanizeOnly {
		return h
	}
	return fmt.Sprintf("%s (%s)", h, t.Local().Format(time.RFC822))
}

func safeTruncString(in string) (out string) {
	out = in
	if len(out) > MAX_NAME_COL_LEN {
		out = out[0:MAX_NAME_COL_LEN-3] + "..."
	}
	return
}

// ***** CHECK FOR NEWER VERSIONS

func checkForUpdates(currentVersion string) {
	path := makeConfigFilePath(VERSION_CHECK_FILE_NAME)
	if data, err := os.ReadFile(filepath.Clean(path)); err == nil {
		if lastCheck, err := time.Parse(time.RFC3339, string(data)); err == nil {
			if time.Since(lastCheck) < CHECK_VERSION_INTERVAL {
				logger.Debug("skipping update check", log.String("last-checked", safeDate(lastCheck, true)))
				return
			}
		} else {
			logger.Debug("cannot parse data in version check file", log.Error(err))
		}
	}

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	if resp, err := client.Head(RELEASE_CHECK_URL); err != nil {
		logger.Debug("checkForUpdates: while checking github", log.Error(err))
	} else {
		if loc, err := resp.Location(); err != nil {
			logger.Debug("checkForUpdates: while getting location", log.Error(err))
		} else {
			p := strings.Split(loc.Path, "/")
			latest := strings.TrimPrefix(p[len(p)-1], "v")
			current := strings.TrimPrefix(strings.Split(currentVersion, "|")[0], "v")
			if current != latest {
				fmt.Printf("\n>>>   A newer version 'v%s' is available. Please consider upgrading from 'v%s'", latest, current)
				fmt.Printf("\n>>>     It is available at %s\n\n", RELEASE_CHECK_URL)
			}
		}
	}

	ts := time.Now().Format(time.RFC3339)
	if err := os.WriteFile(path, []byte(ts), fs.FileMode(0600)); err != nil {
		logger.Debug("cannot write version check timestamp", log.Error(err))
	}
}
