/*
   Copyright 2016 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openark/golib/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/github/gh-rpl/go/base"
	"github.com/github/gh-rpl/go/mysql"
)

var AppVersion, GitCommit string

// cliFlags are the values read from the command line that need processing before they
// land on the TopologyContext
type cliFlags struct {
	password    string
	askPass     bool
	rplUser     string
	format      string
	debug       bool
	stack       bool
	timeout     time.Duration
	ping        time.Duration
	maxDelay    int64
	maxPosition int64

	master     string
	slaves     string
	candidates string

	slave              string
	masters            string
	interval           time.Duration
	switchoverInterval time.Duration
	reportValues       string
}

func newRootCommand(topologyContext *base.TopologyContext, flags *cliFlags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gh-rpl",
		Short:         "MySQL replication topology manager",
		Version:       AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return prepareContext(topologyContext, flags, cmd.Flags())
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&topologyContext.ConfigFile, "conf", "", "Config file")
	persistent.StringVar(&topologyContext.CliUser, "user", "", "MySQL user")
	persistent.StringVar(&flags.password, "password", "", "MySQL password")
	persistent.BoolVar(&flags.askPass, "ask-pass", false, "prompt for MySQL password")
	persistent.StringVar(&flags.rplUser, "rpl-user", "", "replication user and password, as user:password. Created on masters where missing")

	persistent.StringVar(&topologyContext.SSLCA, "ssl-ca", "", "CA certificate in PEM format for TLS connections to MySQL hosts")
	persistent.StringVar(&topologyContext.SSLCert, "ssl-cert", "", "Certificate in PEM format for TLS connections to MySQL hosts")
	persistent.StringVar(&topologyContext.SSLKey, "ssl-key", "", "Key in PEM format for TLS connections to MySQL hosts")
	persistent.StringVar(&topologyContext.SSLCipher, "ssl-cipher", "", "Cipher slaves use when replicating over TLS")
	persistent.BoolVar(&topologyContext.SSLAllowInsecure, "ssl-allow-insecure", false, "Skips verification of MySQL hosts' certificate chain and host name")

	persistent.DurationVar(&flags.timeout, "timeout", base.DefaultTimeout, "bound on waiting for slaves to catch up or reconnect")
	persistent.DurationVar(&flags.ping, "ping", base.DefaultPingTimeout, "timeout of a single liveness check")
	persistent.IntVar(&topologyContext.ConnectRetries, "connect-retries", base.DefaultConnectRetries, "retries of a failed connection attempt")

	persistent.BoolVar(&topologyContext.Force, "force", false, "ignore eligibility problems that are safe to override, and leave stragglers behind")
	persistent.BoolVar(&topologyContext.Pedantic, "pedantic", false, "fail on warnings, such as differing storage engines")
	persistent.BoolVar(&topologyContext.SuppressWarnings, "suppress-warnings", false, "do not report warnings")

	persistent.StringVar(&topologyContext.HooksPath, "hooks-path", "", "directory where hook files are found (default: empty, ie. hooks disabled). Hook files found on this path, and conforming to hook naming conventions will be executed")
	persistent.StringVar(&topologyContext.HooksHintMessage, "hooks-hint", "", "arbitrary message to be injected to hooks via GH_RPL_HOOKS_HINT, for your convenience")
	persistent.StringVar(&topologyContext.ExecBefore, "exec-before", "", "shell command to run before promoting a new master. Failure aborts the operation")
	persistent.StringVar(&topologyContext.ExecAfter, "exec-after", "", "shell command to run after a new master is promoted")

	persistent.StringVar(&flags.format, "format", string(base.GridOutputFormat), "output format: grid, csv, tab or vertical")
	persistent.BoolVarP(&topologyContext.Verbose, "verbose", "v", false, "verbose")
	persistent.BoolVar(&flags.debug, "debug", false, "debug mode (very verbose)")
	persistent.BoolVar(&topologyContext.Quiet, "quiet", false, "quiet")
	persistent.BoolVar(&flags.stack, "stack", false, "add stack trace upon error")

	rootCmd.AddCommand(newTopologyCommand(topologyContext, flags))
	rootCmd.AddCommand(newMultiSourceCommand(topologyContext, flags))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(AppVersion, GitCommit)
		},
	})
	return rootCmd
}

// prepareContext applies logging, config file and credentials before any command runs
func prepareContext(topologyContext *base.TopologyContext, flags *cliFlags, flagSet *pflag.FlagSet) error {
	log.SetLevel(log.ERROR)
	if topologyContext.Verbose {
		log.SetLevel(log.INFO)
	}
	if flags.debug {
		log.SetLevel(log.DEBUG)
	}
	if flags.stack {
		log.SetPrintStackTrace(flags.stack)
	}
	if topologyContext.Quiet {
		// Override!!
		log.SetLevel(log.ERROR)
	}

	if err := topologyContext.ReadConfigFile(); err != nil {
		return err
	}
	if err := topologyContext.SetTimeout(flags.timeout); err != nil {
		return err
	}
	if flags.ping <= 0 {
		return fmt.Errorf("--ping must be positive; got %+v", flags.ping)
	}
	topologyContext.PingTimeout = flags.ping
	if flagSet.Lookup("max-delay") != nil {
		if err := topologyContext.SetMaxDelay(flags.maxDelay); err != nil {
			return err
		}
		if err := topologyContext.SetMaxPosition(flags.maxPosition); err != nil {
			return err
		}
	}
	if flagSet.Lookup("interval") != nil {
		if err := topologyContext.SetInterval(flags.interval); err != nil {
			return err
		}
		if err := topologyContext.SetSwitchoverInterval(flags.switchoverInterval); err != nil {
			return err
		}
		if err := topologyContext.ReadReportValues(flags.reportValues); err != nil {
			return err
		}
	}
	topologyContext.ApplyConfig(flagSet.Changed)

	format, err := base.ParseOutputFormat(flags.format)
	if err != nil {
		return err
	}
	topologyContext.OutputFormat = format

	if flags.askPass {
		fmt.Fprint(os.Stderr, "Password:")
		bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		flags.password = string(bytePassword)
	}
	topologyContext.SetCliPassword(flags.password)
	if err := topologyContext.ReadRplUser(flags.rplUser); err != nil {
		return err
	}
	topologyContext.ApplyCredentials()

	if topologyContext.SSLCA != "" || topologyContext.SSLCert != "" || topologyContext.SSLAllowInsecure {
		if err := topologyContext.ConnectionConfig.UseTLS(topologyContext.SSLCA, topologyContext.SSLCert, topologyContext.SSLKey, topologyContext.SSLAllowInsecure); err != nil {
			return err
		}
	}
	return nil
}

// parseConnectionConfigs reads a comma delimited list of [user[:password]@]host[:port] descriptors
func parseConnectionConfigs(topologyContext *base.TopologyContext, flagName string, descriptors string) ([]*mysql.ConnectionConfig, error) {
	configs, err := mysql.ParseConnectionConfigs(descriptors, topologyContext.ConnectionConfig)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flagName, err)
	}
	return configs, nil
}

func parseConnectionConfig(topologyContext *base.TopologyContext, flagName string, descriptor string) (*mysql.ConnectionConfig, error) {
	if strings.TrimSpace(descriptor) == "" {
		return nil, fmt.Errorf("--%s must be provided", flagName)
	}
	config, err := mysql.ParseConnectionConfig(descriptor, topologyContext.ConnectionConfig)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flagName, err)
	}
	return config, nil
}

// main is the application's entry point
func main() {
	topologyContext := base.NewTopologyContext()
	rootCmd := newRootCommand(topologyContext, &cliFlags{})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		os.Exit(1)
	}
}
