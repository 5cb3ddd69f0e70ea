// Package db wraps the gocql driver session with the execution surface
// the model and migration layers consume: parameterized DML execution,
// DDL execution, batches and iteration. Transport concerns (pooling,
// retry, reconnect) stay with the driver.
package db

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"
	"github.com/pkg/errors"

	"github.com/axonops/cqlorm/internal/config"
	"github.com/axonops/cqlorm/internal/logger"
)

// Statement pairs a CQL string with its positional parameters.
type Statement struct {
	Query  string
	Values []interface{}
}

// Session is a wrapper around the gocql.Session.
type Session struct {
	*gocql.Session
	cluster     *gocql.ClusterConfig
	consistency gocql.Consistency
	pageSize    int
	keyspace    string
}

// quietLogger suppresses gocql's own log output; failures surface as
// returned errors instead.
type quietLogger struct{}

func (quietLogger) Error(msg string, fields ...gocql.LogField)   {}
func (quietLogger) Warning(msg string, fields ...gocql.LogField) {}
func (quietLogger) Info(msg string, fields ...gocql.LogField)    {}
func (quietLogger) Debug(msg string, fields ...gocql.LogField)   {}

// Connect creates a session from the given configuration, negotiating
// the protocol version downwards from 5.
func Connect(cfg *config.Config) (*Session, error) {
	cluster := gocql.NewCluster(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	cluster.Logger = quietLogger{}
	cluster.DisableInitialHostLookup = true

	consistency := gocql.LocalOne
	if cfg.Consistency != "" {
		parsed, err := parseConsistency(cfg.Consistency)
		if err != nil {
			return nil, err
		}
		consistency = parsed
	}
	cluster.Consistency = consistency

	if cfg.RequestTimeout > 0 {
		cluster.Timeout = time.Duration(cfg.RequestTimeout) * time.Second
	} else {
		cluster.Timeout = 10 * time.Second
	}
	if cfg.ConnectTimeout > 0 {
		cluster.ConnectTimeout = time.Duration(cfg.ConnectTimeout) * time.Second
	} else {
		cluster.ConnectTimeout = 10 * time.Second
	}

	if cfg.Keyspace != "" {
		cluster.Keyspace = cfg.Keyspace
	}

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	if cfg.SSL != nil && cfg.SSL.Enabled {
		tlsConfig, err := createTLSConfig(cfg.SSL, cfg.Host)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create TLS configuration")
		}
		cluster.SslOpts = &gocql.SslOptions{Config: tlsConfig}
	}

	// Protocol v5: Cassandra 3.10+; v4: 3.0+; v3: 2.1+.
	var session *gocql.Session
	var err error
	for _, protoVer := range []int{5, 4, 3} {
		cluster.ProtoVersion = protoVer
		session, err = cluster.CreateSession()
		if err == nil {
			logger.DebugfToFile("Session", "Connected with protocol version %d", protoVer)
			break
		}
		logger.DebugfToFile("Session", "Failed to connect with protocol version %d: %v", protoVer, err)
	}
	if session == nil {
		return nil, errors.Wrap(err, "failed to connect with any supported protocol version")
	}

	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = 100
	}

	return &Session{
		Session:     session,
		cluster:     cluster,
		consistency: consistency,
		pageSize:    pageSize,
		keyspace:    cfg.Keyspace,
	}, nil
}

// parseConsistency maps a consistency level name to its gocql value.
func parseConsistency(level string) (gocql.Consistency, error) {
	switch strings.ToUpper(level) {
	case "ANY":
		return gocql.Any, nil
	case "ONE":
		return gocql.One, nil
	case "TWO":
		return gocql.Two, nil
	case "THREE":
		return gocql.Three, nil
	case "QUORUM":
		return gocql.Quorum, nil
	case "ALL":
		return gocql.All, nil
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum, nil
	case "EACH_QUORUM":
		return gocql.EachQuorum, nil
	case "LOCAL_ONE":
		return gocql.LocalOne, nil
	default:
		return 0, fmt.Errorf("invalid consistency level: %s", level)
	}
}

// Keyspace returns the keyspace the session is bound to.
func (s *Session) Keyspace() string {
	return s.keyspace
}

// SetConsistency sets the consistency level for subsequent queries.
func (s *Session) SetConsistency(level string) error {
	consistency, err := parseConsistency(level)
	if err != nil {
		return err
	}
	s.consistency = consistency
	return nil
}

// Query creates a new query with session defaults applied.
func (s *Session) Query(stmt string, values ...interface{}) *gocql.Query {
	query := s.Session.Query(stmt, values...)
	query.Consistency(s.consistency)
	if s.pageSize > 0 {
		query.PageSize(s.pageSize)
	}
	return query
}

// Exec runs a DML statement.
func (s *Session) Exec(ctx context.Context, stmt string, values ...interface{}) error {
	return s.Query(stmt, values...).WithContext(ctx).Exec()
}

// ExecDDL runs a DDL statement. DDL takes no bound parameters and is not
// paged.
func (s *Session) ExecDDL(ctx context.Context, stmt string) error {
	logger.DebugfToFile("Session", "DDL: %s", stmt)
	return s.Session.Query(stmt).WithContext(ctx).Exec()
}

// ExecBatch runs the statements as one logged batch.
func (s *Session) ExecBatch(ctx context.Context, stmts []Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	batch := s.Session.Batch(gocql.LoggedBatch).WithContext(ctx)
	for _, stmt := range stmts {
		batch.Query(stmt.Query, stmt.Values...)
	}
	return batch.Exec()
}

// Shutdown closes the underlying session.
func (s *Session) Shutdown() {
	s.Session.Close()
}

// createTLSConfig creates a TLS configuration based on the SSL settings.
func createTLSConfig(sslConfig *config.SSLConfig, hostname string) (*tls.Config, error) {
	serverName := sslConfig.ServerName
	if serverName == "" && hostname != "" {
		serverName = hostname
		if colonIdx := strings.LastIndex(hostname, ":"); colonIdx > 0 {
			serverName = hostname[:colonIdx]
		}
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: sslConfig.InsecureSkipVerify, // #nosec G402 - Configurable TLS verification
	}

	if sslConfig.HostVerification && serverName != "" {
		tlsConfig.ServerName = serverName
	}

	if sslConfig.CertPath != "" && sslConfig.KeyPath != "" {
		cert, err := tls.LoadX509KeyPair(sslConfig.CertPath, sslConfig.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %v", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if sslConfig.CAPath != "" {
		caCert, err := os.ReadFile(sslConfig.CAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %v", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}
