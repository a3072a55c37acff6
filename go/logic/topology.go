/*
   Copyright 2026 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package logic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openark/golib/sqlutils"

	"github.com/github/gh-rpl/go/base"
	"github.com/github/gh-rpl/go/mysql"
)

var ErrNoMaster = errors.New("topology has no reachable master")

// SlaveDescriptor is a slave tracked by a Topology. Server is nil when the slave could not be connected.
type SlaveDescriptor struct {
	Key        mysql.InstanceKey
	Config     *mysql.ConnectionConfig
	Server     *mysql.Server
	Discovered bool
}

// Topology is one master and the slaves replicating from it
type Topology struct {
	topologyContext *base.TopologyContext
	driver          mysql.Driver
	hooksExecutor   *HooksExecutor

	masterConfig *mysql.ConnectionConfig
	master       *mysql.Server
	slaves       []*SlaveDescriptor
}

// NewTopology tracks the given master (which may be nil for slave-only operations) and slaves.
// Nothing is connected until Connect.
func NewTopology(topologyContext *base.TopologyContext, masterConfig *mysql.ConnectionConfig, slaveConfigs []*mysql.ConnectionConfig, driver mysql.Driver) (*Topology, error) {
	this := &Topology{
		topologyContext: topologyContext,
		driver:          driver,
		hooksExecutor:   NewHooksExecutor(topologyContext),
		masterConfig:    masterConfig,
	}
	seen := mysql.NewInstanceKeyMap()
	if masterConfig != nil {
		seen.AddKey(masterConfig.Key)
	}
	for _, config := range slaveConfigs {
		if seen.HasKey(config.Key) {
			return nil, fmt.Errorf("%+v is listed more than once in the topology", config.Key)
		}
		seen.AddKey(config.Key)
		this.slaves = append(this.slaves, &SlaveDescriptor{Key: config.Key, Config: config})
	}
	return this, nil
}

func (this *Topology) newServer(config *mysql.ConnectionConfig) *mysql.Server {
	server := mysql.NewServer(config, this.driver)
	server.ConnectRetries = this.topologyContext.ConnectRetries
	server.ConnectRetryInterval = this.topologyContext.PollInterval
	return server
}

// Connect connects the master, which must succeed, and every slave. Slaves that cannot be
// reached are logged and left with a nil Server.
func (this *Topology) Connect(ctx context.Context) error {
	if this.masterConfig != nil {
		if err := this.connectMaster(ctx); err != nil {
			return err
		}
	}
	this.connectSlaves(ctx)
	return nil
}

// ConnectWithoutMaster is Connect for operations that expect the master to be gone
func (this *Topology) ConnectWithoutMaster(ctx context.Context) error {
	if this.masterConfig != nil {
		if err := this.connectMaster(ctx); err != nil {
			this.topologyContext.Log.Warningf("Master is not reachable: %+v", err)
		}
	}
	this.connectSlaves(ctx)
	for _, slave := range this.slaves {
		if slave.Server != nil {
			return nil
		}
	}
	return fmt.Errorf("None of the %d slaves could be reached", len(this.slaves))
}

func (this *Topology) connectMaster(ctx context.Context) error {
	server := this.newServer(this.masterConfig)
	if err := server.Connect(ctx); err != nil {
		return err
	}
	server.SetRole("master")
	this.validateConnection(ctx, server, "master")
	this.master = server
	return nil
}

func (this *Topology) connectSlaves(ctx context.Context) {
	for _, slave := range this.slaves {
		if slave.Server != nil {
			continue
		}
		server := this.newServer(slave.Config)
		if err := server.Connect(ctx); err != nil {
			this.topologyContext.Log.Warningf("Cannot connect to slave %+v: %+v", slave.Key, err)
			continue
		}
		server.SetRole("slave")
		this.validateConnection(ctx, server, "slave")
		slave.Server = server
	}
}

// validateConnection warns when the server's own idea of its port does not match the
// one we connected to; port mapping and proxies make this common
func (this *Topology) validateConnection(ctx context.Context, server *mysql.Server, name string) {
	serverInfo, err := mysql.GetServerInfo(ctx, server)
	if err != nil {
		this.topologyContext.Log.Warningf("Cannot read server info from %+v: %+v", server.Key(), err)
		return
	}
	if err := base.ValidateConnection(serverInfo, server.Config(), this.topologyContext, name); err != nil {
		this.topologyContext.Log.Warningf("%s %+v: %+v", name, server.Key(), err)
	}
}

// Close disconnects every server
func (this *Topology) Close() {
	if this.master != nil {
		this.master.Disconnect()
	}
	for _, slave := range this.slaves {
		if slave.Server != nil {
			slave.Server.Disconnect()
		}
	}
}

func (this *Topology) Master() *mysql.Server {
	return this.master
}

func (this *Topology) MasterConfig() *mysql.ConnectionConfig {
	return this.masterConfig
}

// Slaves returns the tracked slaves, in order
func (this *Topology) Slaves() []*SlaveDescriptor {
	return append([]*SlaveDescriptor{}, this.slaves...)
}

func (this *Topology) findSlave(key mysql.InstanceKey) *SlaveDescriptor {
	for _, slave := range this.slaves {
		if slave.Key.Equals(&key) {
			return slave
		}
	}
	return nil
}

func (this *Topology) removeSlave(key mysql.InstanceKey) {
	slaves := []*SlaveDescriptor{}
	for _, slave := range this.slaves {
		if !slave.Key.Equals(&key) {
			slaves = append(slaves, slave)
		}
	}
	this.slaves = slaves
}

// isAlive probes a server within the ping timeout
func (this *Topology) isAlive(ctx context.Context, server *mysql.Server) bool {
	if server == nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, this.topologyContext.PingTimeout)
	defer cancel()
	return server.IsAlive(pingCtx)
}

func (this *Topology) masterIsAlive(ctx context.Context) bool {
	return this.isAlive(ctx, this.master)
}

// reachableSlaves returns the slaves that are connected and answer a ping
func (this *Topology) reachableSlaves(ctx context.Context) []*SlaveDescriptor {
	reachable := []*SlaveDescriptor{}
	for _, slave := range this.slaves {
		if this.isAlive(ctx, slave.Server) {
			reachable = append(reachable, slave)
		}
	}
	return reachable
}

func (this *Topology) slaveView(server *mysql.Server) *Slave {
	slave := AsSlave(server)
	slave.PollInterval = this.topologyContext.PollInterval
	return slave
}

func (this *Topology) sslOptions() SSLOptions {
	return contextSSLOptions(this.topologyContext)
}

func (this *Topology) link(master *mysql.Server, slave *mysql.Server) (*ReplicationLink, error) {
	return NewReplicationLink(master, slave, contextReplicationOptions(this.topologyContext))
}

func contextSSLOptions(topologyContext *base.TopologyContext) SSLOptions {
	return SSLOptions{
		CA:     topologyContext.SSLCA,
		Cert:   topologyContext.SSLCert,
		Key:    topologyContext.SSLKey,
		Cipher: topologyContext.SSLCipher,
	}
}

func contextReplicationOptions(topologyContext *base.TopologyContext) *ReplicationOptions {
	options := NewReplicationOptions()
	options.Verbose = topologyContext.Verbose
	options.Pedantic = topologyContext.Pedantic
	options.SuppressWarnings = topologyContext.SuppressWarnings
	options.SSL = contextSSLOptions(topologyContext)
	options.Interval = topologyContext.PollInterval
	return options
}

func readSlaveHosts(ctx context.Context, server *mysql.Server) (keys []mysql.InstanceKey, err error) {
	query := fmt.Sprintf(`show /* gh-rpl */ %s`, server.Term("slave hosts"))
	err = server.QueryRowsMap(ctx, query, func(m sqlutils.RowMap) error {
		key := mysql.InstanceKey{Hostname: m.GetString("Host"), Port: m.GetInt("Port")}
		if key.IsValid() {
			keys = append(keys, key)
		}
		return nil
	})
	return keys, err
}

// DiscoverSlaves adds the slaves registered on the master that are not tracked yet. Hosts
// that cannot be reached, or that do not replicate from this master, are skipped with a warning.
func (this *Topology) DiscoverSlaves(ctx context.Context) (discovered []*SlaveDescriptor, err error) {
	if this.master == nil {
		return nil, ErrNoMaster
	}
	keys, err := readSlaveHosts(ctx, this.master)
	if err != nil {
		return nil, err
	}
	masterKey := this.master.Key()
	for _, key := range keys {
		if key.Equals(&masterKey) || this.findSlave(key) != nil {
			continue
		}
		config := this.masterConfig.DuplicateCredentials(key)
		server := this.newServer(config)
		if err := server.Connect(ctx); err != nil {
			this.topologyContext.Log.Warningf("Discovered slave %+v cannot be reached; skipping: %+v", key, err)
			continue
		}
		configured, err := this.slaveView(server).IsConfiguredForMaster(ctx, this.master, false, false)
		if err != nil || !configured {
			this.topologyContext.Log.Warningf("Discovered slave %+v does not replicate from %+v; skipping", key, masterKey)
			server.Disconnect()
			continue
		}
		server.SetRole("slave")
		descriptor := &SlaveDescriptor{Key: key, Config: config, Server: server, Discovered: true}
		this.slaves = append(this.slaves, descriptor)
		discovered = append(discovered, descriptor)
		this.topologyContext.Log.Infof("Discovered slave %+v", key)
	}
	return discovered, nil
}

// TopologyNode is a server in the replication tree built by Map
type TopologyNode struct {
	Key         mysql.InstanceKey
	MasterKey   *mysql.InstanceKey
	Depth       int
	Unreachable bool
	// Circular nodes were already seen elsewhere in the tree and are not descended into
	Circular bool
	Children []*TopologyNode
}

// Map walks the replication tree below the master, breadth first, through SHOW SLAVE HOSTS
func (this *Topology) Map(ctx context.Context) (*TopologyNode, error) {
	if this.master == nil {
		return nil, ErrNoMaster
	}
	root := &TopologyNode{Key: this.master.Key()}
	visited := mysql.NewInstanceKeyMap()
	visited.AddKey(root.Key)

	queue := []*TopologyNode{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		keys, err := this.slaveHostsOf(ctx, node)
		if err != nil {
			this.topologyContext.Log.Warningf("Cannot list slaves of %+v: %+v", node.Key, err)
			node.Unreachable = true
			continue
		}
		for _, key := range keys {
			child := &TopologyNode{Key: key, MasterKey: &node.Key, Depth: node.Depth + 1}
			node.Children = append(node.Children, child)
			if visited.HasKey(key) {
				child.Circular = true
				continue
			}
			visited.AddKey(key)
			queue = append(queue, child)
		}
	}
	return root, nil
}

func (this *Topology) slaveHostsOf(ctx context.Context, node *TopologyNode) ([]mysql.InstanceKey, error) {
	if node.Depth == 0 {
		return readSlaveHosts(ctx, this.master)
	}
	if slave := this.findSlave(node.Key); slave != nil && slave.Server != nil {
		return readSlaveHosts(ctx, slave.Server)
	}
	server := this.newServer(this.masterConfig.DuplicateCredentials(node.Key))
	if err := server.Connect(ctx); err != nil {
		return nil, err
	}
	defer server.Disconnect()
	return readSlaveHosts(ctx, server)
}

// RenderMap returns one line per node, children indented below their master
func RenderMap(root *TopologyNode) []string {
	lines := []string{}
	stack := []*TopologyNode{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		line := fmt.Sprintf("%s (MASTER)", node.Key.DisplayString())
		if node.Depth > 0 {
			line = fmt.Sprintf("%s+--- %s", strings.Repeat("   ", node.Depth-1), node.Key.DisplayString())
		}
		if node.Circular {
			line += " <-- circular"
		}
		if node.Unreachable {
			line += " (unreachable)"
		}
		lines = append(lines, line)
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}
	return lines
}
