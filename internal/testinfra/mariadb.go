// Package testinfra starts disposable infrastructure containers for
// local development and integration testing.
package testinfra

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/docvault/docfs/data"
)

// MariaDBOptions configures the dev database container.
type MariaDBOptions struct {
	Image        string // default mariadb:11
	Database     string // default docfs
	RootPassword string // default docfs-root
	AppUser      string // default docfs_app
	AppPassword  string // default docfs-app
	HostPort     string // optional fixed host port binding
}

// MariaDB is a running database container and its connection info.
type MariaDB struct {
	Container testcontainers.Container
	Host      string
	Port      string
	Options   MariaDBOptions
}

// DSN returns the application user's connection string.
func (m *MariaDB) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		m.Options.AppUser, m.Options.AppPassword, m.Host, m.Port, m.Options.Database)
}

// StartMariaDB runs a MariaDB container, waits for it to accept
// connections and applies the embedded schema bootstrap.
func StartMariaDB(ctx context.Context, opts MariaDBOptions) (*MariaDB, error) {
	if opts.Image == "" {
		opts.Image = "mariadb:11"
	}
	if opts.Database == "" {
		opts.Database = "docfs"
	}
	if opts.RootPassword == "" {
		opts.RootPassword = "docfs-root"
	}
	if opts.AppUser == "" {
		opts.AppUser = "docfs_app"
	}
	if opts.AppPassword == "" {
		opts.AppPassword = "docfs-app"
	}

	tcpPort, err := nat.NewPort("tcp", "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to create DB port: %w", err)
	}

	req := testcontainers.ContainerRequest{
		Image:        opts.Image,
		ExposedPorts: []string{string(tcpPort)},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": opts.RootPassword,
			"MARIADB_DATABASE":      opts.Database,
			"MARIADB_USER":          opts.AppUser,
			"MARIADB_PASSWORD":      opts.AppPassword,
		},
		WaitingFor: wait.ForListeningPort(tcpPort).WithStartupTimeout(60 * time.Second),
	}
	if opts.HostPort != "" {
		req.HostConfigModifier = func(hostConfig *container.HostConfig) {
			hostConfig.PortBindings = nat.PortMap{
				tcpPort: []nat.PortBinding{
					{HostIP: "127.0.0.1", HostPort: opts.HostPort},
				},
			}
		}
	}

	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start MariaDB: %w", err)
	}

	host, err := dbContainer.Host(ctx)
	if err != nil {
		_ = dbContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mappedPort, err := dbContainer.MappedPort(ctx, tcpPort)
	if err != nil {
		_ = dbContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	m := &MariaDB{
		Container: dbContainer,
		Host:      host,
		Port:      mappedPort.Port(),
		Options:   opts,
	}

	if err := m.applyBootstrap(); err != nil {
		_ = dbContainer.Terminate(ctx)
		return nil, err
	}
	log.Printf("MariaDB ready at %s:%s (database %s)", m.Host, m.Port, opts.Database)
	return m, nil
}

// Terminate stops and removes the container.
func (m *MariaDB) Terminate(ctx context.Context) {
	if m.Container != nil {
		if err := m.Container.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate MariaDB: %v", err)
		}
	}
}

// applyBootstrap runs the embedded DDL as root.
func (m *MariaDB) applyBootstrap() error {
	rootDSN := fmt.Sprintf("root:%s@tcp(%s:%s)/%s?multiStatements=true",
		m.Options.RootPassword, m.Host, m.Port, m.Options.Database)
	db, err := sql.Open("mysql", rootDSN)
	if err != nil {
		return fmt.Errorf("failed to open root connection: %w", err)
	}
	defer db.Close()

	for _, script := range []string{data.InitdbMariaDBTables, data.InitdbMariaDBPrivileges} {
		for _, stmt := range splitStatements(script) {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("bootstrap statement failed: %w", err)
			}
		}
	}
	return nil
}

// splitStatements breaks a SQL script on semicolons, skipping comments
// and blank fragments.
func splitStatements(script string) []string {
	var out []string
	for _, raw := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
