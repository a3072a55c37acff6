/*
   Copyright 2016 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package base

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-ini/ini"
	"github.com/openark/golib/log"

	"github.com/github/gh-rpl/go/mysql"
)

// ReportValue names a value the multi-source scheduler reports on every interval
type ReportValue string

const (
	HealthReportValue ReportValue = "health"
	GTIDReportValue   ReportValue = "gtid"
	UUIDReportValue   ReportValue = "uuid"
)

const (
	DefaultTimeout            = 300 * time.Second
	DefaultPingTimeout        = 3 * time.Second
	DefaultInterval           = 15 * time.Second
	DefaultSwitchoverInterval = 60 * time.Second
	DefaultPollInterval       = time.Second
	DefaultSetupMaxTries      = 300
	DefaultConnectRetries     = 2
)

var (
	envVariableRegexp = regexp.MustCompile("[$][{](.*)[}]")
)

// Logger is the logging interface carried on the TopologyContext
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warning(args ...interface{}) error
	Warningf(format string, args ...interface{}) error
	Error(args ...interface{}) error
	Errorf(format string, args ...interface{}) error
	Errore(err error) error
	Fatal(args ...interface{}) error
	Fatalf(format string, args ...interface{}) error
	Fatale(err error) error
	SetLevel(level log.LogLevel)
	SetPrintStackTrace(printStackTraceFlag bool)
}

// TopologyContext has the general, global state of a topology operation. It is used by
// all components throughout the operation.
type TopologyContext struct {
	Uuid string

	config              ContextConfig
	configMutex         *sync.Mutex
	ConfigFile          string
	CliUser             string
	cliPassword         string
	CliRplUser          string
	cliRplPassword      string
	ConnectionConfig    *mysql.ConnectionConfig
	RplUser             string
	rplPassword         string
	AllowedMasterMaster bool

	Force            bool
	Pedantic         bool
	Verbose          bool
	Quiet            bool
	SuppressWarnings bool
	Demote           bool
	Strict           bool
	Discover         bool

	SSLCA            string
	SSLCert          string
	SSLKey           string
	SSLCipher        string
	SSLAllowInsecure bool

	timeout            time.Duration
	PingTimeout        time.Duration
	maxDelay           int64
	maxPosition        int64
	interval           time.Duration
	switchoverInterval time.Duration
	PollInterval       time.Duration
	SetupMaxTries      int
	ConnectRetries     int
	ReportValues       []ReportValue

	HooksPath        string
	HooksHintMessage string
	ExecBefore       string
	ExecAfter        string

	DropServeSocket bool
	ServeSocketFile string
	ServeTCPPort    int64

	OutputFormat OutputFormat
	StartTime    time.Time

	pointOfInterestTime      time.Time
	pointOfInterestTimeMutex *sync.Mutex

	Log Logger
}

type ContextConfig struct {
	Client struct {
		User     string
		Password string
	}
	Replication struct {
		User     string
		Password string
	}
	Topology struct {
		Timeout            time.Duration
		Ping               time.Duration
		MaxDelay           int64
		MaxPosition        int64
		Interval           time.Duration
		SwitchoverInterval time.Duration
	}
	Hooks struct {
		Path       string
		ExecBefore string
		ExecAfter  string
	}
}

func NewTopologyContext() *TopologyContext {
	return &TopologyContext{
		Uuid:                     newUuid(),
		configMutex:              &sync.Mutex{},
		pointOfInterestTimeMutex: &sync.Mutex{},
		ConnectionConfig:         mysql.NewConnectionConfig(),
		timeout:                  DefaultTimeout,
		PingTimeout:              DefaultPingTimeout,
		interval:                 DefaultInterval,
		switchoverInterval:       DefaultSwitchoverInterval,
		PollInterval:             DefaultPollInterval,
		SetupMaxTries:            DefaultSetupMaxTries,
		ConnectRetries:           DefaultConnectRetries,
		ReportValues:             []ReportValue{HealthReportValue},
		OutputFormat:             GridOutputFormat,
		StartTime:                time.Now(),
		Log:                      NewDefaultLogger(),
	}
}

// GetTimeout is the bound on catch-up and reconnect waits
func (this *TopologyContext) GetTimeout() time.Duration {
	this.configMutex.Lock()
	defer this.configMutex.Unlock()
	return this.timeout
}

func (this *TopologyContext) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("timeout must be positive; got %+v", timeout)
	}
	this.configMutex.Lock()
	defer this.configMutex.Unlock()
	this.timeout = timeout
	return nil
}

// GetMaxDelay is the number of seconds a slave may lag before it is reported unhealthy
func (this *TopologyContext) GetMaxDelay() int64 {
	this.configMutex.Lock()
	defer this.configMutex.Unlock()
	return this.maxDelay
}

func (this *TopologyContext) SetMaxDelay(maxDelay int64) error {
	if maxDelay < 0 {
		return fmt.Errorf("max-delay must be non negative; got %d", maxDelay)
	}
	this.configMutex.Lock()
	defer this.configMutex.Unlock()
	this.maxDelay = maxDelay
	return nil
}

// GetMaxPosition is the binlog position drift a slave may have before it is reported unhealthy
func (this *TopologyContext) GetMaxPosition() int64 {
	this.configMutex.Lock()
	defer this.configMutex.Unlock()
	return this.maxPosition
}

func (this *TopologyContext) SetMaxPosition(maxPosition int64) error {
	if maxPosition < 0 {
		return fmt.Errorf("max-position must be non negative; got %d", maxPosition)
	}
	this.configMutex.Lock()
	defer this.configMutex.Unlock()
	this.maxPosition = maxPosition
	return nil
}

// GetInterval is the reporting interval of the multi-source scheduler
func (this *TopologyContext) GetInterval() time.Duration {
	this.configMutex.Lock()
	defer this.configMutex.Unlock()
	return this.interval
}

func (this *TopologyContext) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive; got %+v", interval)
	}
	this.configMutex.Lock()
	defer this.configMutex.Unlock()
	this.interval = interval
	return nil
}

// GetSwitchoverInterval is how long the multi-source scheduler replicates from each master
func (this *TopologyContext) GetSwitchoverInterval() time.Duration {
	this.configMutex.Lock()
	defer this.configMutex.Unlock()
	return this.switchoverInterval
}

func (this *TopologyContext) SetSwitchoverInterval(switchoverInterval time.Duration) error {
	if switchoverInterval <= 0 {
		return fmt.Errorf("switchover-interval must be positive; got %+v", switchoverInterval)
	}
	this.configMutex.Lock()
	defer this.configMutex.Unlock()
	this.switchoverInterval = switchoverInterval
	return nil
}

// ReadReportValues parses a comma delimited list such as "health,gtid"
func (this *TopologyContext) ReadReportValues(reportValues string) error {
	values := []ReportValue{}
	for _, token := range strings.Split(reportValues, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		switch value := ReportValue(token); value {
		case HealthReportValue, GTIDReportValue, UUIDReportValue:
			values = append(values, value)
		default:
			return fmt.Errorf("Unknown report value: %s. Expected one of health, gtid, uuid", token)
		}
	}
	if len(values) == 0 {
		return fmt.Errorf("No report values given")
	}
	this.ReportValues = values
	return nil
}

func (this *TopologyContext) MarkPointOfInterest() {
	this.pointOfInterestTimeMutex.Lock()
	defer this.pointOfInterestTimeMutex.Unlock()
	this.pointOfInterestTime = time.Now()
}

func (this *TopologyContext) TimeSincePointOfInterest() time.Duration {
	this.pointOfInterestTimeMutex.Lock()
	defer this.pointOfInterestTimeMutex.Unlock()
	return time.Since(this.pointOfInterestTime)
}

func (this *TopologyContext) ElapsedTime() time.Duration {
	return time.Since(this.StartTime)
}

func (this *TopologyContext) SetCliPassword(password string) {
	this.cliPassword = password
}

func (this *TopologyContext) SetCliRplPassword(password string) {
	this.cliRplPassword = password
}

// GetRplPassword returns the replication user's password after ApplyCredentials()
func (this *TopologyContext) GetRplPassword() string {
	this.configMutex.Lock()
	defer this.configMutex.Unlock()
	return this.rplPassword
}

// ReadRplUser reads a `user:password` pair as given to --rpl-user
func (this *TopologyContext) ReadRplUser(rplUser string) error {
	if rplUser == "" {
		return nil
	}
	tokens := strings.SplitN(rplUser, ":", 2)
	if tokens[0] == "" {
		return fmt.Errorf("Cannot parse --rpl-user: %s. Expected user:password", rplUser)
	}
	this.CliRplUser = tokens[0]
	if len(tokens) == 2 {
		this.cliRplPassword = tokens[1]
	}
	return nil
}

// ApplyCredentials sorts out the credentials between the config file and the CLI flags
func (this *TopologyContext) ApplyCredentials() {
	this.configMutex.Lock()
	defer this.configMutex.Unlock()

	if this.config.Client.User != "" {
		this.ConnectionConfig.User = this.config.Client.User
	}
	if this.CliUser != "" {
		// Override
		this.ConnectionConfig.User = this.CliUser
	}
	if this.config.Client.Password != "" {
		this.ConnectionConfig.Password = this.config.Client.Password
	}
	if this.cliPassword != "" {
		// Override
		this.ConnectionConfig.Password = this.cliPassword
	}

	if this.config.Replication.User != "" {
		this.RplUser = this.config.Replication.User
	}
	if this.CliRplUser != "" {
		this.RplUser = this.CliRplUser
	}
	if this.config.Replication.Password != "" {
		this.rplPassword = this.config.Replication.Password
	}
	if this.cliRplPassword != "" {
		this.rplPassword = this.cliRplPassword
	}
}

// ApplyConfig copies [topology] and [hooks] settings read from the config file onto the context.
// A setting is skipped when isSetOnCommandLine reports its flag was given explicitly.
func (this *TopologyContext) ApplyConfig(isSetOnCommandLine func(flagName string) bool) {
	this.configMutex.Lock()
	defer this.configMutex.Unlock()

	apply := func(flagName string, present bool, assign func()) {
		if !present {
			return
		}
		if isSetOnCommandLine != nil && isSetOnCommandLine(flagName) {
			return
		}
		assign()
	}
	topology := this.config.Topology
	hooks := this.config.Hooks
	apply("timeout", topology.Timeout > 0, func() { this.timeout = topology.Timeout })
	apply("ping", topology.Ping > 0, func() { this.PingTimeout = topology.Ping })
	apply("max-delay", topology.MaxDelay > 0, func() { this.maxDelay = topology.MaxDelay })
	apply("max-position", topology.MaxPosition > 0, func() { this.maxPosition = topology.MaxPosition })
	apply("interval", topology.Interval > 0, func() { this.interval = topology.Interval })
	apply("switchover-interval", topology.SwitchoverInterval > 0, func() { this.switchoverInterval = topology.SwitchoverInterval })
	apply("hooks-path", hooks.Path != "", func() { this.HooksPath = hooks.Path })
	apply("exec-before", hooks.ExecBefore != "", func() { this.ExecBefore = hooks.ExecBefore })
	apply("exec-after", hooks.ExecAfter != "", func() { this.ExecAfter = hooks.ExecAfter })
}

// ReadConfigFile attempts to read the config file, if it exists
func (this *TopologyContext) ReadConfigFile() error {
	this.configMutex.Lock()
	defer this.configMutex.Unlock()

	if this.ConfigFile == "" {
		return nil
	}
	cfg, err := ini.Load(this.ConfigFile)
	if err != nil {
		return err
	}
	config := ContextConfig{}

	if cfg.Section("client").HasKey("user") {
		config.Client.User = cfg.Section("client").Key("user").String()
	}
	if cfg.Section("client").HasKey("password") {
		config.Client.Password = cfg.Section("client").Key("password").String()
	}
	if cfg.Section("replication").HasKey("user") {
		config.Replication.User = cfg.Section("replication").Key("user").String()
	}
	if cfg.Section("replication").HasKey("password") {
		config.Replication.Password = cfg.Section("replication").Key("password").String()
	}

	topology := cfg.Section("topology")
	if topology.HasKey("timeout") {
		if config.Topology.Timeout, err = readSeconds(topology.Key("timeout")); err != nil {
			return err
		}
	}
	if topology.HasKey("ping") {
		if config.Topology.Ping, err = readSeconds(topology.Key("ping")); err != nil {
			return err
		}
	}
	if topology.HasKey("max_delay") {
		if config.Topology.MaxDelay, err = topology.Key("max_delay").Int64(); err != nil {
			return err
		}
	}
	if topology.HasKey("max_position") {
		if config.Topology.MaxPosition, err = topology.Key("max_position").Int64(); err != nil {
			return err
		}
	}
	if topology.HasKey("interval") {
		if config.Topology.Interval, err = readSeconds(topology.Key("interval")); err != nil {
			return err
		}
	}
	if topology.HasKey("switchover_interval") {
		if config.Topology.SwitchoverInterval, err = readSeconds(topology.Key("switchover_interval")); err != nil {
			return err
		}
	}

	hooks := cfg.Section("hooks")
	config.Hooks.Path = hooks.Key("path").String()
	config.Hooks.ExecBefore = hooks.Key("exec_before").String()
	config.Hooks.ExecAfter = hooks.Key("exec_after").String()

	// We accept user & password in the form "${SOME_ENV_VARIABLE}" in which case we pull
	// the given variable from os env
	for _, value := range []*string{&config.Client.User, &config.Client.Password, &config.Replication.User, &config.Replication.Password} {
		if submatch := envVariableRegexp.FindStringSubmatch(*value); len(submatch) > 1 {
			*value = os.Getenv(submatch[1])
		}
	}

	this.config = config
	return nil
}

// readSeconds accepts either a plain number of seconds or a Go duration such as "1m30s"
func readSeconds(key *ini.Key) (time.Duration, error) {
	if seconds, err := key.Float64(); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	duration, err := key.Duration()
	if err != nil {
		return 0, fmt.Errorf("Invalid duration for %s: %s", key.Name(), key.String())
	}
	return duration, nil
}
