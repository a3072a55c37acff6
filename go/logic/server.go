/*
   Copyright 2016 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/openark/golib/log"
	"golang.org/x/net/netutil"

	"github.com/github/gh-rpl/go/base"
)

const maxServerConnections = 16

// Server listens for interactive commands to a running multi-source scheduler, on a socket file or via TCP
type Server struct {
	topologyContext *base.TopologyContext
	unixListener    net.Listener
	tcpListener     net.Listener
	hooksExecutor   *HooksExecutor
	scheduler       *MultiSourceScheduler
}

func NewServer(topologyContext *base.TopologyContext, hooksExecutor *HooksExecutor, scheduler *MultiSourceScheduler) *Server {
	return &Server{
		topologyContext: topologyContext,
		hooksExecutor:   hooksExecutor,
		scheduler:       scheduler,
	}
}

func (this *Server) BindSocketFile() (err error) {
	if this.topologyContext.ServeSocketFile == "" {
		return nil
	}
	if this.topologyContext.DropServeSocket && base.FileExists(this.topologyContext.ServeSocketFile) {
		os.Remove(this.topologyContext.ServeSocketFile)
	}
	listener, err := net.Listen("unix", this.topologyContext.ServeSocketFile)
	if err != nil {
		return err
	}
	this.unixListener = netutil.LimitListener(listener, maxServerConnections)
	log.Infof("Listening on unix socket file: %s", this.topologyContext.ServeSocketFile)
	return nil
}

func (this *Server) BindTCPPort() (err error) {
	if this.topologyContext.ServeTCPPort == 0 {
		return nil
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", this.topologyContext.ServeTCPPort))
	if err != nil {
		return err
	}
	this.tcpListener = netutil.LimitListener(listener, maxServerConnections)
	log.Infof("Listening on tcp port: %d", this.topologyContext.ServeTCPPort)
	return nil
}

// Serve begins listening & serving on whichever device was configured, until ctx is done
func (this *Server) Serve(ctx context.Context) (err error) {
	for _, listener := range []net.Listener{this.unixListener, this.tcpListener} {
		if listener == nil {
			continue
		}
		go this.acceptConnections(ctx, listener)
	}
	go func() {
		<-ctx.Done()
		this.Close()
	}()
	return nil
}

func (this *Server) acceptConnections(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			log.Errore(err)
			continue
		}
		go this.handleConnection(ctx, conn)
	}
}

// Close stops accepting connections
func (this *Server) Close() {
	for _, listener := range []net.Listener{this.unixListener, this.tcpListener} {
		if listener != nil {
			listener.Close()
		}
	}
}

func (this *Server) handleConnection(ctx context.Context, conn net.Conn) (err error) {
	defer conn.Close()
	command, _, err := bufio.NewReader(conn).ReadLine()
	if err != nil {
		return err
	}
	return this.onServerCommand(ctx, string(command), bufio.NewWriter(conn))
}

// onServerCommand responds to a user's interactive command
func (this *Server) onServerCommand(ctx context.Context, command string, writer *bufio.Writer) (err error) {
	defer writer.Flush()

	if err = this.applyServerCommand(ctx, command, writer); err != nil {
		fmt.Fprintf(writer, "%s\n", err.Error())
	}
	return log.Errore(err)
}

// applyServerCommand parses and executes commands by user
func (this *Server) applyServerCommand(ctx context.Context, command string, writer io.Writer) (err error) {
	command = strings.TrimSpace(command)
	if err := this.hooksExecutor.onInteractiveCommand(ctx, command); err != nil {
		return err
	}

	switch command {
	case "help":
		fmt.Fprintln(writer, `available commands:
status                               # Print the scheduler's state and its latest report
health                               # Print a health report on the active replication link
gtid                                 # Print a GTID report on the active replication link
uuid                                 # Print the server UUIDs of the active replication link
next                                 # Move on to the next master now
stop                                 # Stop replication and quit
help                                 # This message`)
	case "status", "sup":
		this.printStatus(writer)
	case "health", "gtid", "uuid":
		reportValue := map[string]base.ReportValue{
			"health": base.HealthReportValue,
			"gtid":   base.GTIDReportValue,
			"uuid":   base.UUIDReportValue,
		}[command]
		reportCtx, cancel := context.WithTimeout(ctx, this.topologyContext.GetInterval()+this.topologyContext.PingTimeout)
		defer cancel()
		return this.scheduler.Report(reportCtx, reportValue, writer)
	case "next":
		this.scheduler.Next()
		fmt.Fprintln(writer, "Moving on to the next master")
	case "stop":
		this.scheduler.Stop()
		fmt.Fprintln(writer, "Stopping")
	default:
		return fmt.Errorf("Unknown command: %s", command)
	}
	return nil
}

func (this *Server) printStatus(writer io.Writer) {
	status := this.scheduler.Status()
	master := "(none)"
	if status.Master != nil {
		master = status.Master.DisplayString()
	}
	fmt.Fprintf(writer, "# Run: %s\n", status.RunID)
	fmt.Fprintf(writer, "# Started: %s; elapsed: %s\n", status.StartedAt.Format(time.RubyDate), base.PrettifyDurationOutput(time.Since(status.StartedAt)))
	fmt.Fprintf(writer, "# Master: %s; since %s; round: %d\n", master, status.MasterSince.Format(time.RubyDate), status.Round)
	if status.LastError != "" {
		fmt.Fprintf(writer, "# Last error: %s\n", status.LastError)
	}
	if status.LastReport != "" {
		fmt.Fprint(writer, status.LastReport)
	}
}
