package cmd

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{"notifications", "orders", "team_members", "teams", "profiles", "auth_users", "companies"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password1"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		companyID := seedCompany(db, "B1G Distribution", "active")
		dormantID := seedCompany(db, "Sunset Trading", "inactive")

		superID := seedUser(db, "super@b1g.local", string(hash), "Sam Super", "super_admin", "", "")
		sysID := seedUser(db, "sysadmin@b1g.local", string(hash), "Sydney Ops", "system_administrator", "", "")
		adminID := seedUser(db, "admin@b1g.local", string(hash), "Ada Admin", "admin", companyID, "")
		leaderID := seedUser(db, "leader@b1g.local", string(hash), "Lee Leader", "mobile_sales", companyID, "Leader")
		agentID := seedUser(db, "agent@b1g.local", string(hash), "Avery Agent", "mobile_sales", companyID, "")
		dormantUserID := seedUser(db, "dormant@b1g.local", string(hash), "Dora Dormant", "mobile_sales", dormantID, "")

		teamID := uuid.NewString()
		if err := db.Exec(
			"INSERT INTO teams (id, company_id, name, leader_id, created_at) VALUES (?, ?, ?, ?, now()) ON CONFLICT DO NOTHING",
			teamID, companyID, "North Field Team", leaderID,
		).Error; err != nil {
			log.Fatalf("failed to insert team: %v", err)
		}
		for _, member := range []string{leaderID, agentID} {
			if err := db.Exec(
				"INSERT INTO team_members (team_id, user_id, created_at) VALUES (?, ?, now()) ON CONFLICT DO NOTHING",
				teamID, member,
			).Error; err != nil {
				log.Fatalf("failed to insert team member: %v", err)
			}
		}

		if err := db.Exec(
			"INSERT INTO notifications (id, user_id, type, title, message, is_read, created_at) VALUES (?, ?, 'system', 'Welcome to B1G Ordering', 'Your workspace is ready.', false, now()) ON CONFLICT DO NOTHING",
			uuid.NewString(), adminID,
		).Error; err != nil {
			log.Fatalf("failed to insert notification: %v", err)
		}

		fmt.Println("Seeded companies:", companyID, dormantID)
		fmt.Println("Seeded users: super:", superID, "sysadmin:", sysID, "admin:", adminID,
			"leader:", leaderID, "agent:", agentID, "dormant:", dormantUserID)
		fmt.Println("All seeded passwords are:", password)
	},
}

func seedCompany(db *gorm.DB, name, status string) string {
	var id string
	if err := db.Raw("SELECT id FROM companies WHERE name = ?", name).Row().Scan(&id); err == nil {
		fmt.Println("company already exists:", name)
		return id
	}

	id = uuid.NewString()
	if err := db.Exec(
		"INSERT INTO companies (id, name, status, created_at, updated_at) VALUES (?, ?, ?, now(), now())",
		id, name, status,
	).Error; err != nil {
		log.Fatalf("failed to insert company %s: %v", name, err)
	}
	fmt.Println("Seeded company:", name)
	return id
}

func seedUser(db *gorm.DB, email, hash, name, role, companyID, position string) string {
	var id string
	if err := db.Raw("SELECT id FROM auth_users WHERE email = ?", email).Row().Scan(&id); err == nil {
		fmt.Println("user already exists:", email)
		return id
	}

	id = uuid.NewString()
	var companyArg interface{}
	if companyID != "" {
		companyArg = companyID
	}

	if err := db.Exec(
		"INSERT INTO auth_users (id, email, password_hash, meta_role, meta_name, meta_company_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, now(), now())",
		id, email, hash, role, name, companyArg,
	).Error; err != nil {
		log.Fatalf("failed to insert auth user %s: %v", email, err)
	}

	if err := db.Exec(
		"INSERT INTO profiles (id, email, name, role, status, company_id, position, created_at, updated_at) VALUES (?, ?, ?, ?, 'active', ?, ?, now(), now())",
		id, email, name, role, companyArg, position,
	).Error; err != nil {
		log.Fatalf("failed to insert profile %s: %v", email, err)
	}

	fmt.Println("Seeded user:", email, "role:", role)
	return id
}
