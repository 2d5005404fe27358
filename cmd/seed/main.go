package main

import (
	"context"
	"flag"
	"os"

	backenddb "casebook/internal/backend/database"
	"casebook/internal/config"
	"casebook/internal/entity"
	"casebook/internal/model"
	"casebook/internal/repository/specification"
	"casebook/internal/repository/unitofwork"
	"casebook/pkg/database"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

var sampleCases = []entity.Case{
	{
		Title:       "Broken boiler",
		ClientName:  "Flat 4B",
		Description: "No hot water since Monday. Landlord notified by email.",
		Status:      entity.CaseStatusOpen,
		Attributes:  map[string]interface{}{"floor": "4", "priority": "high"},
	},
	{
		Title:      "Deposit dispute",
		ClientName: "J. Alvarez",
		Status:     entity.CaseStatusInProgress,
		Attributes: map[string]interface{}{"amount": "1200 EUR"},
	},
	{
		Title:      "Fence repair",
		ClientName: "Unit 9",
		Status:     entity.CaseStatusClosed,
		Attributes: map[string]interface{}{},
	},
}

func main() {
	email := flag.String("email", "demo@casebook.local", "account email")
	password := flag.String("password", "casebook-demo", "account password (8+ characters)")
	fullName := flag.String("name", "Demo User", "account display name")
	withCases := flag.Bool("cases", true, "insert sample cases")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	db, err := database.NewGormDB(database.GormConfig{
		Driver:     cfg.Database.Driver,
		Connection: cfg.Database.Connection,
		LogLevel:   cfg.Database.LogLevel,
	})
	if err != nil {
		color.Red("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	if cfg.Database.Driver == database.DriverSqlite {
		// Local sqlite files are usually fresh; make seeding a one-step setup.
		if err := db.AutoMigrate(model.All()...); err != nil {
			color.Red("AutoMigrate failed: %v", err)
			os.Exit(1)
		}
	}

	factory := unitofwork.NewRepositoryFactory(db)
	provider := backenddb.NewProvider(factory, cfg.Backend.JWTSecret, cfg.Backend.AccessTokenTTL)

	color.Cyan("Seeding casebook")

	color.Yellow("\n1. Account %s", *email)
	var ownerId uuid.UUID
	user, err := provider.CreateUser(ctx, *email, *password, *fullName)
	if err != nil {
		existing, findErr := factory.NewUnitOfWork(ctx).UserRepository().FindOne(ctx, specification.ByEmail{Email: *email})
		if findErr != nil || existing == nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
		color.White("Already exists, reusing it")
		ownerId = existing.Id
	} else {
		color.Green("Created user %s", user.Id)
		ownerId = uuid.MustParse(user.Id)
	}

	if !*withCases {
		return
	}

	color.Yellow("\n2. Sample cases")
	uow := factory.NewUnitOfWork(ctx)
	for i := range sampleCases {
		c := sampleCases[i]
		c.CreatedBy = ownerId
		if err := uow.CaseRepository().Create(ctx, &c); err != nil {
			color.Red("Failed to insert %q: %v", c.Title, err)
			os.Exit(1)
		}
		color.Green("#%d %s", c.Id, c.Title)
	}

	color.Cyan("\nDone. Sign in with %s / %s", *email, *password)
}
