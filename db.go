package main

import (
	"log"
	"os"
	"strings"

	"emisor/models"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func initDB() {
	var err error
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set. Use a Postgres DSN, or sqlite:<path> for local runs.")
	}
	// A sqlite: DSN selects the pure-Go driver; anything else is Postgres.
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		db, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	} else {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}
	// Control schema migrations with env DB_AUTO_MIGRATE (default true). Any permission errors will be logged and ignored.
	shouldMigrate := true
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			shouldMigrate = false
		}
	}
	// Ensure the roles master table exists first and seed it so users FK can be applied safely.
	if shouldMigrate {
		if err := db.AutoMigrate(&models.Role{}); err != nil {
			log.Printf("migration warning (roles): %v", err)
		}
	}
	seedRoles()

	// Now migrate the rest (users will get FK to roles)
	if shouldMigrate {
		// Migrate models individually so a failure on one doesn't block others
		if err := db.AutoMigrate(&models.User{}); err != nil {
			log.Printf("migration warning (users): %v", err)
		}
		if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
			log.Printf("migration warning (refresh_tokens): %v", err)
		}
		if err := db.AutoMigrate(&models.Project{}); err != nil {
			log.Printf("migration warning (projects): %v", err)
		}
		if err := db.AutoMigrate(&models.Template{}); err != nil {
			log.Printf("migration warning (templates): %v", err)
		}
		if err := db.AutoMigrate(&models.Emission{}); err != nil {
			log.Printf("migration warning (emissions): %v", err)
		}
	}
	seedDB()
}

func seedRoles() {
	roles := []models.Role{
		{Name: "administrator", Description: "full access"},
		{Name: "analista", Description: "runs emissions"},
		{Name: "auxiliar", Description: "read-only access"},
	}
	for _, r := range roles {
		var cnt int64
		db.Model(&models.Role{}).Where("name = ?", r.Name).Count(&cnt)
		if cnt == 0 {
			db.Create(&r)
		}
	}
}

func seedDB() {
	seedRoles()

	// Check if admin user exists
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		// find administrator role id
		var role models.Role
		if err := db.Where("name = ?", "administrator").First(&role).Error; err != nil {
			log.Printf("failed to find administrator role: %v", err)
		}
		// Seed admin user
		rid := role.ID
		admin := models.User{
			Username: "admin",
			RoleID:   &rid,
		}
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		admin.HashedPassword = hashedPassword
		db.Create(&admin)
		log.Println("Seeded admin user: username=admin, password=admin123")
	}
	// Ensure the output tree exists before the first run asks for it
	ensureOutputBase()
}

// ensureOutputBase creates the base directory emissions are written under.
func ensureOutputBase() {
	base := outputBaseDir()
	if err := os.MkdirAll(base, 0755); err != nil {
		log.Printf("failed to create output base dir %s: %v", base, err)
	}
}

// outputBaseDir returns the base directory for generated PDFs (configurable via OUTPUT_BASE env)
func outputBaseDir() string {
	if v := os.Getenv("OUTPUT_BASE"); v != "" {
		return v
	}
	return "salidas"
}
