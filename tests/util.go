// Package testutil holds the fixtures shared by the test suites.
package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"
	"time"

	"github.com/Pallinder/go-randomdata"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/spadesk/core"
	"github.com/trezcool/spadesk/core/client"
	"github.com/trezcool/spadesk/core/employee"
	"github.com/trezcool/spadesk/core/treatment"
	"github.com/trezcool/spadesk/core/user"
	"github.com/trezcool/spadesk/storage/database"
	logsvc "github.com/trezcool/spadesk/services/logger"
)

// NewConfig returns a test configuration. It does not read any file nor env var.
func NewConfig() *core.Config {
	conf := &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "SpaDesk",
		Build:                     "test",
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "SpaDesk", Address: "noreply@spadesk.test"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			Port:                      "8000",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Database: core.DatabaseConfig{Engine: database.EngineSQLite, Path: ":memory:"},
	}
	conf.SetBusiness(core.BusinessConfig{
		Currency:           "EUR",
		TaxRateBasisPoints: 2000,
		SlotMinutes:        15,
		QuotationValidDays: 30,
		Timezone:           "UTC",
	})
	return conf
}

// NewLogger returns a logger discarding everything.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// PrepareDB opens a migrated in-memory database, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC().Truncate(time.Second)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateClient stores a random active client; email is used when given.
func CreateClient(t *testing.T, repo client.Repository, email ...string) client.Client {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	cl := client.Client{
		FirstName: randomdata.FirstName(randomdata.Female),
		LastName:  randomdata.LastName(),
		Phone:     "+33 6 12 34 56 78",
		Gender:    client.GenderFemale,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(email) > 0 {
		cl.Email = email[0]
	}
	cl, err := repo.CreateClient(context.Background(), cl)
	if err != nil {
		t.Fatalf("CreateClient() failed: %v", err)
	}
	return cl
}

func CreateTreatment(t *testing.T, repo treatment.Repository, name string, minutes int, price core.Money) treatment.Treatment {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	trt, err := repo.CreateTreatment(context.Background(), treatment.Treatment{
		Name:            name,
		Category:        "Massage",
		DurationMinutes: minutes,
		Price:           price,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("CreateTreatment() failed: %v", err)
	}
	return trt
}

// CreateEmployee stores an active employee working every day within the given shift.
func CreateEmployee(t *testing.T, repo employee.Repository, start, end string, treatmentIDs ...string) employee.Employee {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	emp, err := repo.CreateEmployee(ctx, employee.Employee{
		FirstName:    randomdata.FirstName(randomdata.RandomGender),
		LastName:     randomdata.LastName(),
		Position:     "Therapist",
		Color:        "#aabbcc",
		IsActive:     true,
		TreatmentIDs: treatmentIDs,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateEmployee() failed: %v", err)
	}
	if start != "" {
		shifts := make([]employee.Shift, 0, 7)
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			shifts = append(shifts, employee.Shift{EmployeeID: emp.ID, Weekday: wd, Start: start, End: end})
		}
		if err = repo.ReplaceShifts(ctx, emp.ID, shifts); err != nil {
			t.Fatalf("CreateEmployee() failed: %v", err)
		}
	}
	return emp
}

// NextWeekday returns the date of the next weekday wd (never today) at hh:mm UTC.
func NextWeekday(wd time.Weekday, hh, mm int) time.Time {
	d := time.Now().UTC().AddDate(0, 0, 1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hh, mm, 0, 0, time.UTC)
}
