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

type kit struct {
	Name        string
	Team        string
	Season      string
	Price       string
	Stock       int
	Description string
	Image       string
}

var kits = []kit{
	{"Home Shirt 24/25", "Arsenal", "24/25", "74.99", 40, "Red body with white sleeves", "https://images.unsplash.com/photo-1577212017184-80cc0da11082?w=800"},
	{"Away Shirt 24/25", "Arsenal", "24/25", "74.99", 25, "Black with red and gold trim", "https://images.unsplash.com/photo-1522778119026-d647f0596c20?w=800"},
	{"Home Shirt 24/25", "Barcelona", "24/25", "79.99", 35, "Blaugrana stripes", "https://images.unsplash.com/photo-1551958219-acbc608c6377?w=800"},
	{"Away Shirt 24/25", "Barcelona", "24/25", "79.99", 20, "Black with coloured accents", "https://images.unsplash.com/photo-1508098682722-e99c43a406b2?w=800"},
	{"Home Shirt 24/25", "Real Madrid", "24/25", "84.99", 50, "Classic all white", "https://images.unsplash.com/photo-1606925797300-0b35e9d1794e?w=800"},
	{"Home Shirt 24/25", "Manchester United", "24/25", "74.99", 30, "Red with black collar", "https://images.unsplash.com/photo-1574629810360-7efbbe195018?w=800"},
	{"Home Shirt 24/25", "Liverpool", "24/25", "74.99", 30, "All red", "https://images.unsplash.com/photo-1560272564-c83b66b1ad12?w=800"},
	{"Home Shirt 24/25", "Bayern Munich", "24/25", "79.99", 15, "Red and white", "https://images.unsplash.com/photo-1579952363873-27f3bade9f55?w=800"},
	{"Home Shirt 24/25", "Juventus", "24/25", "69.99", 10, "Black and white stripes", "https://images.unsplash.com/photo-1575361204480-aadea25e6e68?w=800"},
	{"Home Shirt 2024", "Argentina", "2024", "89.99", 60, "Sky blue and white stripes with three stars", "https://images.unsplash.com/photo-1517466787929-bc90951d0974?w=800"},
	{"Home Shirt 2024", "Brazil", "2024", "89.99", 45, "Canary yellow", "https://images.unsplash.com/photo-1431324155629-1a6deb1dec8d?w=800"},
	{"Retro Shirt 1998", "France", "1998", "59.99", 5, "World Cup winners replica", "https://images.unsplash.com/photo-1489944440615-453fc2b6a9a9?w=800"},
}

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

	seedKits(db)
	seedUsers(db)

	log.Println("Seeding completed successfully!")
}

func seedKits(db *sql.DB) {
	fmt.Println("Seeding Kits...")
	for _, k := range kits {
		res, err := db.Exec(`
			INSERT INTO kits (name, team, season, price, stock, description, image_url)
			SELECT $1, $2, $3, $4::numeric, $5, $6, $7
			WHERE NOT EXISTS (SELECT 1 FROM kits WHERE name = $1 AND team = $2);
		`, k.Name, k.Team, k.Season, k.Price, k.Stock, k.Description, k.Image)
		if err != nil {
			log.Printf("Failed to seed kit %s %s: %v", k.Team, k.Name, err)
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			log.Printf("Kit %s %s already present", k.Team, k.Name)
		}
	}
}

func seedUsers(db *sql.DB) {
	users := []struct {
		Email     string
		Username  string
		FirstName string
		LastName  string
	}{
		{"demo@kitstore.dev", "demo", "Demo", "Shopper"},
		{"fan@example.com", "superfan", "Sam", "Fan"},
	}

	fmt.Println("Seeding Users...")
	for _, u := range users {
		hash, err := argon2id.CreateHash("password123", argon2id.DefaultParams)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		_, err = db.Exec(`
			INSERT INTO users (email, username, password_hash, first_name, last_name)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (email) DO NOTHING;
		`, u.Email, u.Username, hash, u.FirstName, u.LastName)
		if err != nil {
			log.Printf("Failed to seed user %s: %v", u.Email, err)
		}
	}
}
