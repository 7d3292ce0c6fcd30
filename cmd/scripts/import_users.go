// Command import_users seeds users from a CSV file and prints a bearer token for each.
//
// The CSV header is name,email,role[,campusId].
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ArowuTest/calmcoins-backend/internal/catalog"
	"github.com/ArowuTest/calmcoins-backend/internal/config"
	"github.com/ArowuTest/calmcoins-backend/internal/models"
	"github.com/ArowuTest/calmcoins-backend/internal/repositories"
	mongorepo "github.com/ArowuTest/calmcoins-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/calmcoins-backend/internal/utils"
	"github.com/ArowuTest/calmcoins-backend/pkg/logger"
	mongodb "github.com/ArowuTest/calmcoins-backend/pkg/mongodb"
	"golang.org/x/exp/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, "text")

	// Get CSV file path from command line arguments
	if len(os.Args) < 2 {
		log.Error("CSV file path is required as a command line argument")
		os.Exit(2)
	}

	file, err := os.Open(os.Args[1])
	if err != nil {
		log.Error("Failed to open CSV file", "error", err)
		os.Exit(1)
	}
	defer file.Close()

	rows, err := parseUsers(file)
	if err != nil {
		log.Error("Failed to parse CSV file", "error", err)
		os.Exit(1)
	}

	client, err := mongodb.NewClient(cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		log.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.MongoDB.Database)
	if err := mongorepo.EnsureIndexes(context.Background(), db); err != nil {
		log.Error("Failed to ensure indexes", "error", err)
		os.Exit(1)
	}

	imported := importUsers(context.Background(), mongorepo.NewUserRepository(db), rows, cfg, os.Stdout, log)
	log.Info("Users imported", "count", imported, "rows", len(rows))
}

// parseUsers reads user rows, skipping the header and invalid lines
func parseUsers(r io.Reader) ([]*models.User, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file is empty or has only header")
	}

	var users []*models.User
	for i, record := range records[1:] {
		if len(record) < 3 {
			slog.Warn("Record has less than 3 fields, skipping", "line", i+2)
			continue
		}
		role := strings.ToLower(strings.TrimSpace(record[2]))
		switch role {
		case catalog.RoleStudent, catalog.RoleTeacher, catalog.RoleParent:
		default:
			slog.Warn("Record has unknown role, skipping", "line", i+2, "role", record[2])
			continue
		}
		u := &models.User{
			Name:  strings.TrimSpace(record[0]),
			Email: strings.TrimSpace(record[1]),
			Role:  role,
		}
		if len(record) > 3 {
			u.CampusID = strings.TrimSpace(record[3])
		}
		users = append(users, u)
	}
	return users, nil
}

// importUsers creates each user and writes "email,id,token" lines to out
func importUsers(ctx context.Context, repo repositories.UserRepository, users []*models.User, cfg *config.Config, out io.Writer, log *slog.Logger) int {
	imported := 0
	for _, u := range users {
		now := time.Now()
		u.Badges = []models.UserBadge{}
		u.CreatedAt = now
		u.UpdatedAt = now
		if err := repo.Create(ctx, u); err != nil {
			log.Warn("Failed to create user", "email", u.Email, "error", err)
			continue
		}
		token, err := utils.GenerateJWT(utils.Claims{
			UserID:   u.ID.Hex(),
			Role:     u.Role,
			CampusID: u.CampusID,
		}, cfg.JWT.Secret, cfg.TokenTTL())
		if err != nil {
			log.Warn("Failed to sign token", "email", u.Email, "error", err)
			continue
		}
		fmt.Fprintf(out, "%s,%s,%s\n", u.Email, u.ID.Hex(), token)
		imported++
	}
	return imported
}
