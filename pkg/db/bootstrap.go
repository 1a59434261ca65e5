package db

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultProfile is the profile created on first run.
const DefaultProfile = "default"

// Bootstrap creates the default profile and API server config if the
// database has no profiles yet.
func (db *DB) Bootstrap(ctx context.Context) error {
	needs, err := db.NeedsBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to check profiles: %w", err)
	}
	if !needs {
		return nil
	}

	p := &Profile{Name: DefaultProfile, Timezone: detectTimezone(), IsActive: true}
	if err := db.Profiles().Create(ctx, p); err != nil {
		return err
	}

	if err := db.APIServers().Upsert(ctx, &APIServer{ProfileID: p.ID, Host: "0.0.0.0", Port: 8080}); err != nil {
		return fmt.Errorf("failed to create default API server: %w", err)
	}

	return nil
}

// NeedsBootstrap returns true if the database needs initial setup.
func (db *DB) NeedsBootstrap(ctx context.Context) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// detectTimezone returns the IANA name of the system timezone, or UTC.
func detectTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}

	if data, err := os.ReadFile("/etc/timezone"); err == nil {
		if tz := strings.TrimSpace(string(data)); tz != "" {
			return tz
		}
	}

	// /etc/localtime -> /usr/share/zoneinfo/Asia/Tokyo
	if link, err := os.Readlink("/etc/localtime"); err == nil {
		if idx := strings.Index(link, "zoneinfo/"); idx != -1 {
			return link[idx+len("zoneinfo/"):]
		}
	}

	return "UTC"
}
