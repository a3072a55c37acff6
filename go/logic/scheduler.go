/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openark/golib/log"

	"github.com/github/gh-rpl/go/base"
	"github.com/github/gh-rpl/go/mysql"
)

// SchedulerStatus is a snapshot of a MultiSourceScheduler
type SchedulerStatus struct {
	RunID        string
	Master       *mysql.InstanceKey
	Round        int
	StartedAt    time.Time
	MasterSince  time.Time
	LastReport   string
	LastReportAt time.Time
	LastError    string
}

// MultiSourceScheduler replicates a single slave from several masters in turn, switching to
// the next master every switchover interval and reporting on the active link every interval.
type MultiSourceScheduler struct {
	// Writer receives the reports. Nil discards them.
	Writer io.Writer

	topologyContext *base.TopologyContext
	driver          mysql.Driver
	hooksExecutor   *HooksExecutor
	slaveConfig     *mysql.ConnectionConfig
	masterConfigs   []*mysql.ConnectionConfig

	slave  *mysql.Server
	master *mysql.Server

	// masters that passed the prerequisite checks and a full setup
	validated *mysql.InstanceKeyMap

	statusMutex    *sync.Mutex
	status         SchedulerStatus
	nextRequested  chan struct{}
	stopRequested  chan struct{}
	reportRequests chan *reportRequest
	stopOnce       sync.Once
}

func NewMultiSourceScheduler(topologyContext *base.TopologyContext, slaveConfig *mysql.ConnectionConfig, masterConfigs []*mysql.ConnectionConfig, driver mysql.Driver) (*MultiSourceScheduler, error) {
	if len(masterConfigs) == 0 {
		return nil, fmt.Errorf("Multi-source replication needs at least one master")
	}
	seen := mysql.NewInstanceKeyMap()
	seen.AddKey(slaveConfig.Key)
	for _, config := range masterConfigs {
		if seen.HasKey(config.Key) {
			return nil, fmt.Errorf("%+v is listed more than once among the slave and its masters", config.Key)
		}
		seen.AddKey(config.Key)
	}
	return &MultiSourceScheduler{
		topologyContext: topologyContext,
		driver:          driver,
		hooksExecutor:   NewHooksExecutor(topologyContext),
		slaveConfig:     slaveConfig,
		masterConfigs:   masterConfigs,
		validated:       mysql.NewInstanceKeyMap(),
		statusMutex:     &sync.Mutex{},
		status:          SchedulerStatus{RunID: uuid.NewString()},
		nextRequested:   make(chan struct{}, 1),
		stopRequested:   make(chan struct{}),
		reportRequests:  make(chan *reportRequest),
	}, nil
}

// Status returns a copy of the scheduler's current state
func (this *MultiSourceScheduler) Status() SchedulerStatus {
	this.statusMutex.Lock()
	defer this.statusMutex.Unlock()
	return this.status
}

func (this *MultiSourceScheduler) updateStatus(update func(status *SchedulerStatus)) {
	this.statusMutex.Lock()
	defer this.statusMutex.Unlock()
	update(&this.status)
}

// Next cuts the current slot short; the scheduler moves on to the next master
func (this *MultiSourceScheduler) Next() {
	select {
	case this.nextRequested <- struct{}{}:
	default:
	}
}

// Stop makes Run return. It may be called more than once.
func (this *MultiSourceScheduler) Stop() {
	this.stopOnce.Do(func() {
		close(this.stopRequested)
	})
}

// sleep waits for the given duration. It returns true when the scheduler is stopping.
func (this *MultiSourceScheduler) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(duration):
		return false
	}
}

func (this *MultiSourceScheduler) newServer(config *mysql.ConnectionConfig) *mysql.Server {
	server := mysql.NewServer(config, this.driver)
	server.ConnectRetries = this.topologyContext.ConnectRetries
	server.ConnectRetryInterval = this.topologyContext.PollInterval
	return server
}

// Run rotates the slave through the masters until ctx is done or Stop is called, in which
// case it returns nil. A master is set up with full prerequisite checks until it has once
// been set up successfully; after that the slave only switches to it.
func (this *MultiSourceScheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-this.stopRequested:
			cancel()
		case <-ctx.Done():
		}
	}()

	this.slave = this.newServer(this.slaveConfig)
	if err := this.slave.Connect(ctx); err != nil {
		return err
	}
	this.slave.SetRole("slave")
	defer this.shutdown()

	this.updateStatus(func(status *SchedulerStatus) {
		status.StartedAt = time.Now()
	})
	round := 0
	for iteration := 0; ; iteration++ {
		index := iteration % len(this.masterConfigs)
		if iteration > 0 && index == 0 {
			round++
			this.updateStatus(func(status *SchedulerStatus) {
				status.Round = round
			})
		}
		if this.master == nil || len(this.masterConfigs) > 1 {
			if err := this.activate(ctx, this.masterConfigs[index]); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Errore(err)
				this.updateStatus(func(status *SchedulerStatus) {
					status.LastError = err.Error()
				})
				this.hooksExecutor.onFailure(ctx, "multisource", err)
				if this.sleep(ctx, this.topologyContext.GetInterval()) {
					return nil
				}
				continue
			}
		}
		if this.serveSlot(ctx) {
			return nil
		}
	}
}

// activate stops the slave and points it at the given master
func (this *MultiSourceScheduler) activate(ctx context.Context, masterConfig *mysql.ConnectionConfig) error {
	if this.master != nil {
		this.master.Disconnect()
		this.master = nil
		this.updateStatus(func(status *SchedulerStatus) {
			status.Master = nil
		})
	}
	slave := AsSlave(this.slave)
	slave.PollInterval = this.topologyContext.PollInterval
	slaveStatus, err := slave.GetStatus(ctx)
	if err != nil {
		return err
	}
	if slaveStatus != nil && !slaveStatus.IsStopped() {
		if err := slave.Stop(ctx); err != nil {
			return err
		}
	}

	master := this.newServer(masterConfig)
	if err := master.Connect(ctx); err != nil {
		return err
	}
	master.SetRole("master")
	if err := this.startReplication(ctx, master, slave); err != nil {
		master.Disconnect()
		return err
	}

	this.master = master
	masterKey := master.Key()
	this.updateStatus(func(status *SchedulerStatus) {
		status.Master = &masterKey
		status.MasterSince = time.Now()
		status.LastError = ""
	})
	slaveKey := this.slave.Key()
	this.hooksExecutor.onMasterChange(ctx, &slaveKey, &masterKey)
	log.Infof("%+v replicates from %+v", slaveKey, masterKey)
	return nil
}

func (this *MultiSourceScheduler) startReplication(ctx context.Context, master *mysql.Server, slave *Slave) error {
	rplUser, rplPassword := this.topologyContext.RplUser, this.topologyContext.GetRplPassword()
	if this.validated.HasKey(master.Key()) {
		return slave.SwitchMaster(ctx, master, rplUser, rplPassword, contextSSLOptions(this.topologyContext))
	}
	for _, server := range []*mysql.Server{master, this.slave} {
		on, err := gtidModeOn(ctx, server)
		if err != nil {
			return err
		}
		if !on {
			return mysql.NewReplicationError(mysql.CheckGTID, "Multi-source replication requires GTID_MODE=ON. %+v does not have it.", server.Key())
		}
	}
	link, err := NewReplicationLink(master, this.slave, contextReplicationOptions(this.topologyContext))
	if err != nil {
		return err
	}
	diagnostics, err := link.CheckPrerequisites(ctx)
	if err != nil {
		return err
	}
	if err := diagnostics.Err(); err != nil {
		return err
	}
	converged, err := link.Setup(ctx, rplUser, rplPassword, this.topologyContext.SetupMaxTries)
	if err != nil {
		return err
	}
	if !converged {
		return fmt.Errorf("Replication %s did not start", link)
	}
	this.validated.AddKey(master.Key())
	return nil
}

// serveSlot reports on the active link until the switchover interval elapses or Next is
// called. It returns true when the scheduler is stopping.
func (this *MultiSourceScheduler) serveSlot(ctx context.Context) bool {
	slotTimer := time.NewTimer(this.topologyContext.GetSwitchoverInterval())
	defer slotTimer.Stop()
	reportTicker := time.NewTicker(this.topologyContext.GetInterval())
	defer reportTicker.Stop()

	this.report(ctx)
	for {
		select {
		case <-ctx.Done():
			return true
		case <-this.nextRequested:
			log.Infof("Moving on to the next master, as requested")
			return false
		case <-slotTimer.C:
			return false
		case <-reportTicker.C:
			this.report(ctx)
		case request := <-this.reportRequests:
			fmt.Fprint(request.writer, this.renderReport(ctx, request.reportValues))
			close(request.done)
		}
	}
}

// reportRequest asks the scheduler loop for a report outside the regular interval
type reportRequest struct {
	reportValues []base.ReportValue
	writer       io.Writer
	done         chan struct{}
}

// Report writes a report on the active link to writer. It waits for the scheduler to be
// serving a master.
func (this *MultiSourceScheduler) Report(ctx context.Context, reportValue base.ReportValue, writer io.Writer) error {
	request := &reportRequest{
		reportValues: []base.ReportValue{reportValue},
		writer:       writer,
		done:         make(chan struct{}),
	}
	select {
	case this.reportRequests <- request:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-request.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// report prints the configured report values for the active master and slave
func (this *MultiSourceScheduler) report(ctx context.Context) {
	if this.master == nil {
		return
	}
	text := this.renderReport(ctx, this.topologyContext.ReportValues)
	if this.Writer != nil {
		fmt.Fprint(this.Writer, text)
	}
	this.updateStatus(func(status *SchedulerStatus) {
		status.LastReport = text
		status.LastReportAt = time.Now()
	})
}

func (this *MultiSourceScheduler) renderReport(ctx context.Context, reportValues []base.ReportValue) string {
	topology := &Topology{
		topologyContext: this.topologyContext,
		driver:          this.driver,
		hooksExecutor:   this.hooksExecutor,
		masterConfig:    this.master.Config(),
		master:          this.master,
		slaves:          []*SlaveDescriptor{{Key: this.slave.Key(), Config: this.slaveConfig, Server: this.slave}},
	}
	var buffer bytes.Buffer
	fmt.Fprintf(&buffer, "# %s\n", time.Now().Format(time.RFC3339))
	for _, reportValue := range reportValues {
		var columns []string
		var rows [][]string
		var err error
		switch reportValue {
		case base.HealthReportValue:
			columns, rows, err = topology.GetHealth(ctx)
		case base.GTIDReportValue:
			columns, rows, err = topology.GetGTIDReport(ctx)
		case base.UUIDReportValue:
			columns, rows, err = topology.GetUUIDReport(ctx)
		default:
			err = fmt.Errorf("Unknown report value: %s", reportValue)
		}
		if err != nil {
			fmt.Fprintf(&buffer, "%s: %s\n", reportValue, err.Error())
			log.Errore(err)
			continue
		}
		if err := base.PrintResults(&buffer, this.topologyContext.OutputFormat, columns, rows); err != nil {
			log.Errore(err)
		}
	}
	return buffer.String()
}

// shutdown stops the slave and disconnects everything, regardless of how Run ended
func (this *MultiSourceScheduler) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), this.topologyContext.PingTimeout)
	defer cancel()
	if err := AsSlave(this.slave).Stop(ctx); err != nil {
		log.Errore(err)
	}
	if this.master != nil {
		this.master.Disconnect()
		this.master = nil
	}
	this.slave.Disconnect()
	this.updateStatus(func(status *SchedulerStatus) {
		status.Master = nil
	})
	log.Infof("Multi-source replication on %+v stopped", this.slaveConfig.Key)
}
