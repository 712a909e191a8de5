package main

import (
	"errors"
	"fmt"
	"os"

	"exchangeflow/config"

	flags "github.com/jessevdk/go-flags"
)

// options are the command line flags. Set flags override values from the
// config file and FLOWSTAT_* environment variables.
type options struct {
	ConfigFile        string `short:"c" long:"config" description:"Path to a YAML config file (default: ./config.yaml or ./config/config.yaml)"`
	DataDir           string `short:"d" long:"data-dir" description:"Directory holding transaction batch files"`
	OutputDir         string `short:"o" long:"output-dir" description:"Directory to write reports and charts to"`
	ExchangeAddresses string `short:"e" long:"exchanges" description:"JSON file mapping exchange names to address lists"`
	Pattern           string `long:"pattern" description:"Glob selecting batch files inside the data directory"`
	StartDate         string `long:"start" description:"Inclusive start date (YYYY-MM-DD) for batch selection"`
	EndDate           string `long:"end" description:"Inclusive end date (YYYY-MM-DD) for batch selection"`
	Workers           int    `short:"w" long:"workers" description:"Number of batches processed concurrently"`
	Network           string `long:"network" description:"Bitcoin network used to validate addresses" choice:"mainnet" choice:"testnet" choice:"testnet3" choice:"regtest" choice:"simnet"`
	XLSX              bool   `long:"xlsx" description:"Also write an XLSX workbook with both reports"`
	NoCharts          bool   `long:"no-charts" description:"Skip chart rendering"`
}

// loadConfig parses the command line and merges it into the loaded config.
func loadConfig() (*config.Config, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if !isHelp(err) {
			parser.WriteHelp(os.Stderr)
		}
		return nil, err
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}
	opts.apply(cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, err
	}
	return cfg, nil
}

// isHelp reports whether err is the parser's response to -h/--help.
func isHelp(err error) bool {
	var e *flags.Error
	return errors.As(err, &e) && e.Type == flags.ErrHelp
}

func (o *options) apply(cfg *config.Config) {
	setString(&cfg.DataDir, o.DataDir)
	setString(&cfg.OutputDir, o.OutputDir)
	setString(&cfg.ExchangeAddresses, o.ExchangeAddresses)
	setString(&cfg.FilePattern, o.Pattern)
	setString(&cfg.StartDate, o.StartDate)
	setString(&cfg.EndDate, o.EndDate)
	setString(&cfg.Network, o.Network)
	if o.Workers > 0 {
		cfg.Workers = o.Workers
	}
	if o.XLSX {
		cfg.Report.XLSX = true
	}
	if o.NoCharts {
		cfg.Charts.Enabled = false
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
