/*
   Copyright 2016 GitHub Inc.
	 See https://github.com/github/gh-rpl/blob/master/LICENSE
*/

package mysql

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	drivermysql "github.com/go-sql-driver/mysql"
)

const (
	TLS_CONFIG_KEY = "gh-rpl"
	DefaultTimeout = 10.0
)

// ConnectionConfig is the minimal configuration required to connect to a MySQL server
type ConnectionConfig struct {
	Key       InstanceKey
	Socket    string
	User      string
	Password  string
	Timeout   float64
	tlsConfig *tls.Config
}

func NewConnectionConfig() *ConnectionConfig {
	config := &ConnectionConfig{
		Key:     InstanceKey{},
		Timeout: DefaultTimeout,
	}
	return config
}

// DuplicateCredentials creates a new connection config with given key and with same credentials as this config
func (this *ConnectionConfig) DuplicateCredentials(key InstanceKey) *ConnectionConfig {
	config := &ConnectionConfig{
		Key:       key,
		User:      this.User,
		Password:  this.Password,
		Timeout:   this.Timeout,
		tlsConfig: this.tlsConfig,
	}
	return config
}

func (this *ConnectionConfig) Duplicate() *ConnectionConfig {
	duplicate := this.DuplicateCredentials(this.Key)
	duplicate.Socket = this.Socket
	return duplicate
}

func (this *ConnectionConfig) String() string {
	return fmt.Sprintf("%s, user=%s, usingTLS=%t", this.Key.DisplayString(), this.User, this.tlsConfig != nil)
}

// Equals returns true when both configs address the same server
func (this *ConnectionConfig) Equals(other *ConnectionConfig) bool {
	if other == nil {
		return false
	}
	return this.Key.Equals(&other.Key) && this.Socket == other.Socket
}

// UseTLS configures client-side TLS for connections made with this config
func (this *ConnectionConfig) UseTLS(caCertificatePath, clientCertificate, clientKey string, allowInsecure bool) error {
	var rootCertPool *x509.CertPool
	var err error

	if caCertificatePath == "" {
		rootCertPool, err = x509.SystemCertPool()
		if err != nil {
			return err
		}
	} else {
		rootCertPool = x509.NewCertPool()
		pem, err := os.ReadFile(caCertificatePath)
		if err != nil {
			return err
		}
		if ok := rootCertPool.AppendCertsFromPEM(pem); !ok {
			return errors.New("could not add ca certificate to cert pool")
		}
	}
	var certificates []tls.Certificate
	if clientCertificate != "" || clientKey != "" {
		cert, err := tls.LoadX509KeyPair(clientCertificate, clientKey)
		if err != nil {
			return err
		}
		certificates = []tls.Certificate{cert}
	}

	this.tlsConfig = &tls.Config{
		ServerName:         this.Key.Hostname,
		Certificates:       certificates,
		RootCAs:            rootCertPool,
		InsecureSkipVerify: allowInsecure,
	}

	return this.RegisterTLSConfig()
}

func (this *ConnectionConfig) TLSConfig() *tls.Config {
	return this.tlsConfig
}

// RegisterTLSConfig registers this config's TLS settings with the driver, keyed by server name
func (this *ConnectionConfig) RegisterTLSConfig() error {
	if this.tlsConfig == nil {
		return nil
	}
	if this.tlsConfig.ServerName == "" {
		return errors.New("tlsConfig.ServerName cannot be empty")
	}
	return drivermysql.RegisterTLSConfig(this.tlsConfigKey(), this.tlsConfig)
}

func (this *ConnectionConfig) tlsConfigKey() string {
	return fmt.Sprintf("%s-%s", TLS_CONFIG_KEY, this.tlsConfig.ServerName)
}

// GetDBUri returns the go-sql-driver DSN for this config
func (this *ConnectionConfig) GetDBUri(databaseName string) string {
	address := ""
	if this.Socket != "" {
		address = fmt.Sprintf("unix(%s)", this.Socket)
	} else {
		hostname := this.Key.Hostname
		var ip = net.ParseIP(hostname)
		if (ip != nil) && (ip.To4() == nil) {
			// Wrap IPv6 literals in square brackets
			hostname = fmt.Sprintf("[%s]", hostname)
		}
		address = fmt.Sprintf("tcp(%s:%d)", hostname, this.Key.Port)
	}

	// go-mysql-driver defaults to false if tls param is not provided; explicitly setting here to
	// simplify construction of the DSN below.
	tlsOption := "false"
	if this.tlsConfig != nil {
		tlsOption = this.tlsConfigKey()
	}
	connectionParams := []string{
		"autocommit=true",
		"interpolateParams=true",
		"charset=utf8mb4,utf8,latin1",
		fmt.Sprintf("tls=%s", tlsOption),
		fmt.Sprintf("timeout=%fs", this.Timeout),
		fmt.Sprintf("readTimeout=%fs", this.Timeout),
		fmt.Sprintf("writeTimeout=%fs", this.Timeout),
	}

	return fmt.Sprintf("%s:%s@%s/%s?%s", this.User, this.Password, address, databaseName, strings.Join(connectionParams, "&"))
}

// ParseConnectionConfig reads a descriptor in the form [user[:password]@]host[:port][:socket].
// Credentials missing from the descriptor are taken from defaults.
func ParseConnectionConfig(descriptor string, defaults *ConnectionConfig) (*ConnectionConfig, error) {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" {
		return nil, fmt.Errorf("Empty connection descriptor")
	}
	config := NewConnectionConfig()
	if defaults != nil {
		config = defaults.Duplicate()
		config.Socket = ""
	}
	if at := strings.LastIndex(descriptor, "@"); at >= 0 {
		credentials := descriptor[:at]
		descriptor = descriptor[at+1:]
		tokens := strings.SplitN(credentials, ":", 2)
		config.User = tokens[0]
		if len(tokens) == 2 {
			config.Password = tokens[1]
		}
	}
	// A trailing path component is a unix socket: host:port:/path/to/socket
	if slash := strings.Index(descriptor, ":/"); slash >= 0 {
		config.Socket = descriptor[slash+1:]
		descriptor = descriptor[:slash]
	}
	key, err := ParseInstanceKey(descriptor)
	if err != nil {
		return nil, err
	}
	config.Key = *key
	if config.tlsConfig != nil {
		tlsConfig := config.tlsConfig.Clone()
		tlsConfig.ServerName = key.Hostname
		config.tlsConfig = tlsConfig
		if err := config.RegisterTLSConfig(); err != nil {
			return nil, err
		}
	}
	return config, nil
}

// ParseConnectionConfigs reads a comma delimited list of descriptors
func ParseConnectionConfigs(descriptors string, defaults *ConnectionConfig) (configs []*ConnectionConfig, err error) {
	for _, descriptor := range strings.Split(descriptors, ",") {
		if strings.TrimSpace(descriptor) == "" {
			continue
		}
		config, err := ParseConnectionConfig(descriptor, defaults)
		if err != nil {
			return configs, err
		}
		configs = append(configs, config)
	}
	return configs, nil
}
