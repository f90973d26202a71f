package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"dashboard/internal/models"
)

// ============================================================
// ClientRepository Tests
// ============================================================

func TestClientRepositoryCreate(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO clients`).
					WithArgs(sqlmock.AnyArg(), "Sharp Foundation", "client_sharp_foundation",
						"ops@sharp.example", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			expectError: nil,
		},
		{
			name: "duplicate name",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO clients`).
					WillReturnError(errors.New("pq: duplicate key value violates unique constraint"))
			},
			expectError: ErrClientExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)
			repo := NewClientRepository(db)

			client := &models.Client{
				Name:        "Sharp Foundation",
				AccountName: "client_sharp_foundation",
				Email:       "ops@sharp.example",
				IsActive:    true,
			}

			err = repo.Create(client)
			if !errors.Is(err, tt.expectError) {
				t.Fatalf("expected %v, got %v", tt.expectError, err)
			}

			if tt.expectError == nil && client.ID == "" {
				t.Error("expected generated ID")
			}
		})
	}
}

func TestClientRepositoryGetByID(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "name", "account_name", "email", "is_active", "created_at", "updated_at"}).
					AddRow("client-1", "Sharp Foundation", "client_sharp_foundation", "ops@sharp.example", true, now, now)
				mock.ExpectQuery(`SELECT .+ FROM clients WHERE id = \$1`).
					WithArgs("client-1").
					WillReturnRows(rows)
			},
			expectError: nil,
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM clients WHERE id = \$1`).
					WithArgs("client-1").
					WillReturnError(sql.ErrNoRows)
			},
			expectError: ErrClientNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)
			repo := NewClientRepository(db)

			client, err := repo.GetByID("client-1")

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected %v, got %v", tt.expectError, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("expected nil, got %v", err)
			}
			if client.AccountName != "client_sharp_foundation" {
				t.Errorf("AccountName = %q", client.AccountName)
			}
		})
	}
}

func TestClientRepositoryGetAll(t *testing.T) {
	now := time.Now()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "account_name", "email", "is_active", "created_at", "updated_at"}).
		AddRow("client-1", "Sharp Foundation", "client_sharp_foundation", "ops@sharp.example", true, now, now).
		AddRow("client-2", "Acme Labs", "client_acme_labs", "", false, now, now)

	mock.ExpectQuery(`SELECT .+ FROM clients ORDER BY created_at DESC`).
		WillReturnRows(rows)

	repo := NewClientRepository(db)
	clients, err := repo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if len(clients) != 2 {
		t.Fatalf("got %d clients, want 2", len(clients))
	}
	if clients[1].Name != "Acme Labs" {
		t.Errorf("Name = %q, want Acme Labs", clients[1].Name)
	}
}

// ============================================================
// UserRepository Tests
// ============================================================

func TestUserRepositoryGetByEmail(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "is_active", "created_at"}).
					AddRow("user-1", "admin@example.com", "$2a$12$hash", "admin", true, now)
				mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1 AND is_active = true`).
					WithArgs("admin@example.com").
					WillReturnRows(rows)
			},
			expectError: nil,
		},
		{
			name: "not found or inactive",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1 AND is_active = true`).
					WithArgs("admin@example.com").
					WillReturnError(sql.ErrNoRows)
			},
			expectError: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)
			repo := NewUserRepository(db)

			user, err := repo.GetByEmail("admin@example.com")

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected %v, got %v", tt.expectError, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("expected nil, got %v", err)
			}
			if user.Role != models.RoleAdmin {
				t.Errorf("Role = %q, want admin", user.Role)
			}
		})
	}
}
