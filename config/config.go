// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/holiman/uint256"

	"github.com/shardflow/flowdag/domain/consensus/processes/transactionvalidator"
	"github.com/shardflow/flowdag/infrastructure/logger"
	"github.com/shardflow/flowdag/version"
)

const (
	defaultConfigFilename = "flowdag.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "flowdag.log"
	defaultErrLogFilename = "flowdag_err.log"

	defaultGroups          = 4
	defaultNetworkId       = NetworkMainnet
	defaultPingFrequency   = 30 * time.Second
	defaultStatusSizeLimit = 1024
)

// NetworkId identifies the network a node participates in, spec.md §6's
// `networkId ∈ {Mainnet, Testnet, Devnet}`.
type NetworkId uint32

const (
	NetworkMainnet NetworkId = iota
	NetworkTestnet
	NetworkDevnet
)

func (n NetworkId) String() string {
	switch n {
	case NetworkMainnet:
		return "mainnet"
	case NetworkTestnet:
		return "testnet"
	case NetworkDevnet:
		return "devnet"
	default:
		return "unknown"
	}
}

func networkIdFromString(s string) (NetworkId, bool) {
	switch strings.ToLower(s) {
	case "mainnet":
		return NetworkMainnet, true
	case "testnet":
		return NetworkTestnet, true
	case "devnet":
		return NetworkDevnet, true
	default:
		return 0, false
	}
}

var (
	defaultHomeDir    = homeDir()
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(defaultHomeDir, defaultLogDirname)

	defaultMaxMiningTarget = new(uint256.Int).Not(new(uint256.Int))
)

// homeDir returns a per-OS default application directory. The teacher's
// util.AppDataDir performs the equivalent lookup across Windows/macOS/Unix;
// that helper was not retrieved into this pack, so this falls back directly
// to os.UserHomeDir, which covers the same cases on every platform Go
// supports.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".flowdag")
}

var activeConfig *Config

// Flags defines the configuration options recognized by flowdag, matching
// spec.md §6's option list (groups, brokerInfo, networkId, maxMiningTarget,
// pingFrequency, statusSizeLimit, the gas schedule, the tx/output caps) plus
// the ambient datadir/logging/version options every teacher-style binary
// carries.
type Flags struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... -- Use show to list available subsystems"`

	Groups int    `long:"groups" description:"Number of shard groups G"`
	Network string `long:"networkid" description:"Network to connect to {mainnet, testnet, devnet}"`

	BrokerId  int `long:"brokerid" description:"This node's broker id within the cluster"`
	BrokerNum int `long:"brokernum" description:"Total number of brokers in the cluster"`

	MaxMiningTarget string `long:"maxminingtarget" description:"Upper bound (hex, big-endian) on every chain's mining target"`
	PingFrequency   time.Duration `long:"pingfrequency" description:"Interval between peer liveness pings. Valid time units are {s, m, h}"`
	StatusSizeLimit int           `long:"statussizelimit" description:"Maximum number of pending (dependency-incomplete) headers/blocks the flow handler buffers"`

	MinimalGas        uint64 `long:"minimalgas" description:"Floor gasAmount accepted from a transaction (0 = use protocol default)"`
	MaxGasPerTx       uint64 `long:"maxgaspertx" description:"Ceiling gasAmount accepted from a transaction (0 = use protocol default)"`
	MaxTxInputNum     int    `long:"maxtxinputnum" description:"Maximum number of inputs a transaction may carry (0 = use protocol default)"`
	MaxTxOutputNum    int    `long:"maxtxoutputnum" description:"Maximum number of outputs a transaction may carry (0 = use protocol default)"`
	MaxTokenPerUtxo   int    `long:"maxtokenperutxo" description:"Maximum number of distinct tokens a single output may carry (0 = use protocol default)"`
	MaxOutputDataSize int    `long:"maxoutputdatasize" description:"Maximum size in bytes of an output's additionalData field (0 = use protocol default)"`
}

// Config is the fully resolved, validated configuration used by the rest of
// the node. It embeds Flags and adds fields derived from it.
type Config struct {
	*Flags

	NetworkId       NetworkId
	MaxMiningTarget *uint256.Int
}

// BrokerServicesChain reports whether this node's broker serves the
// (from, to) chain, the condition `validateGroup` (spec.md §4.4) checks
// against the block's chainIndex.
func (c *Config) BrokerServicesChain(from, to int) bool {
	if c.BrokerNum <= 0 {
		return true
	}
	chainOrdinal := from*c.Groups + to
	return chainOrdinal%c.BrokerNum == c.BrokerId
}

// TransactionValidatorParams builds transactionvalidator.Params from the
// resolved config, applying any non-zero override flags on top of the
// protocol defaults DefaultParams fills in.
func (c *Config) TransactionValidatorParams() transactionvalidator.Params {
	params := transactionvalidator.DefaultParams(uint32(c.NetworkId), c.Groups)
	if c.MinimalGas != 0 {
		params.MinimalGas = c.MinimalGas
	}
	if c.MaxGasPerTx != 0 {
		params.MaxGasPerTx = c.MaxGasPerTx
	}
	if c.MaxTxInputNum != 0 {
		params.MaxTxInputNum = c.MaxTxInputNum
	}
	if c.MaxTxOutputNum != 0 {
		params.MaxTxOutputNum = c.MaxTxOutputNum
	}
	if c.MaxTokenPerUtxo != 0 {
		params.MaxTokenPerUtxo = c.MaxTokenPerUtxo
	}
	if c.MaxOutputDataSize != 0 {
		params.MaxOutputDataSize = c.MaxOutputDataSize
	}
	return params
}

// cleanAndExpandPath expands environment variables and a leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		path = strings.Replace(path, "~", defaultHomeDir, 1)
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfgFlags *Flags, options flags.Options) *flags.Parser {
	return flags.NewParser(cfgFlags, options)
}

// LoadAndSetActiveConfig loads the config and makes it available through
// ActiveConfig().
func LoadAndSetActiveConfig() error {
	cfg, _, err := LoadConfig()
	if err != nil {
		return err
	}
	activeConfig = cfg
	return nil
}

// ActiveConfig returns the config set by the most recent LoadAndSetActiveConfig call.
func ActiveConfig() *Config {
	return activeConfig
}

// LoadConfig initializes and parses the config using a config file and
// command line options, following the same four-step precedence the
// teacher's loadConfig uses:
//  1. Start from a default config with sane settings.
//  2. Pre-parse the command line to check for an alternative config file.
//  3. Load configuration from file, overwriting defaults with any specified options.
//  4. Parse CLI options again so they take final precedence.
func LoadConfig() (*Config, []string, error) {
	cfgFlags := Flags{
		ConfigFile:      defaultConfigFile,
		DataDir:         defaultDataDir,
		LogDir:          defaultLogDir,
		DebugLevel:      defaultLogLevel,
		Groups:          defaultGroups,
		Network:         defaultNetworkId.String(),
		BrokerNum:       1,
		MaxMiningTarget: defaultMaxMiningTarget.Hex(),
		PingFrequency:   defaultPingFrequency,
		StatusSizeLimit: defaultStatusSizeLimit,
	}

	preCfg := cfgFlags
	preParser := newConfigParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	var configFileError error
	parser := newConfigParser(&cfgFlags, flags.Default)

	if _, statErr := os.Stat(preCfg.ConfigFile); statErr == nil || preCfg.ConfigFile != defaultConfigFile {
		if err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile); err != nil {
			if _, ok := err.(*os.PathError); !ok {
				fmt.Fprintf(os.Stderr, "Error parsing config file: %s\n", err)
				fmt.Fprintln(os.Stderr, usageMessage)
				return nil, nil, err
			}
			configFileError = err
		}
	}

	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	cfg := &Config{Flags: &cfgFlags}

	if cfg.Groups < 1 {
		err := errors.Errorf("groups must be >= 1, got %d", cfg.Groups)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	networkId, ok := networkIdFromString(cfg.Network)
	if !ok {
		err := errors.Errorf("invalid networkid %q, expected mainnet, testnet or devnet", cfg.Network)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}
	cfg.NetworkId = networkId

	maxMiningTarget, err := parseU256Hex(cfg.Flags.MaxMiningTarget)
	if err != nil {
		err := errors.Errorf("invalid maxminingtarget: %s", err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}
	cfg.MaxMiningTarget = maxMiningTarget

	if cfg.BrokerNum < 1 {
		err := errors.Errorf("brokernum must be >= 1, got %d", cfg.BrokerNum)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}
	if cfg.BrokerId < 0 || cfg.BrokerId >= cfg.BrokerNum {
		err := errors.Errorf("brokerid must be in [0, brokernum), got %d with brokernum=%d", cfg.BrokerId, cfg.BrokerNum)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if cfg.StatusSizeLimit < 1 {
		err := errors.Errorf("statussizelimit must be >= 1, got %d", cfg.StatusSizeLimit)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.DataDir = filepath.Join(cfg.DataDir, cfg.NetworkId.String())
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.NetworkId.String())

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		err := errors.Errorf("failed to create data directory: %s", err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	if err := logger.InitLog(
		filepath.Join(cfg.LogDir, defaultLogFilename),
		filepath.Join(cfg.LogDir, defaultErrLogFilename),
	); err != nil {
		err := errors.Errorf("failed to initialize log rotation: %s", err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if err := logger.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := errors.Errorf("loadConfig: %s", err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if configFileError != nil && !os.IsNotExist(configFileError) {
		fmt.Fprintf(os.Stderr, "warning: %s\n", configFileError)
	}

	activeConfig = cfg
	return cfg, remainingArgs, nil
}

func parseU256Hex(s string) (*uint256.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, errors.New("empty value")
	}
	v, err := uint256.FromHex("0x" + s)
	if err != nil {
		return nil, err
	}
	return v, nil
}
