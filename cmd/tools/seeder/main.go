package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedUsers(db)
	seedProducts(db)

	log.Println("Seeding completed successfully!")
}

func seedUsers(db *sql.DB) {
	users := []struct {
		Username string
		Password string
		Role     string
	}{
		{"admin", envOr("SEED_ADMIN_PASSWORD", "admin-change-me"), "admin"},
		{"cashier1", envOr("SEED_CASHIER_PASSWORD", "cashier-change-me"), "cashier"},
	}

	fmt.Println("Seeding Users...")
	for _, u := range users {
		hash, err := argon2id.CreateHash(u.Password, argon2id.DefaultParams)
		if err != nil {
			log.Fatalf("Failed to hash password for %s: %v", u.Username, err)
		}
		_, err = db.Exec(`
			INSERT INTO users (username, password_hash, role)
			VALUES ($1, $2, $3)
			ON CONFLICT (username) DO NOTHING
		`, u.Username, hash, u.Role)
		if err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.Username, err)
		}
	}
}

func seedProducts(db *sql.DB) {
	// prices stored in paise
	products := []struct {
		Barcode string
		Name    string
		Price   int64
		Stock   int
	}{
		{"8901234567890", "Parle-G Biscuit 50g", 1000, 100},
		{"8901719123456", "Amul Gold Milk 500ml", 2800, 50},
		{"8901030721273", "Tata Salt 1kg", 2500, 80},
		{"9000000000001", "Local Loose Sugar 1kg", 4500, 40},
		{"9000000000002", "Local Loose Rice 1kg", 6000, 60},
		{"8904004400018", "Aashirvaad Atta 5kg", 25000, 30},
	}

	fmt.Println("Seeding Products...")
	for _, p := range products {
		_, err := db.Exec(`
			INSERT INTO products (barcode, name, price, stock)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (barcode) DO NOTHING
		`, p.Barcode, p.Name, p.Price, p.Stock)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Barcode, err)
		}
	}
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
