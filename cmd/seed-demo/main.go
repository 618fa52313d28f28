// Seeds a demo project with users, inspections and deficiencies.
// Intended for local development and staging environments only.
//
// Usage:
//
//	go run ./cmd/seed-demo
package main

import (
	"context"
	"log"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/models"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"github.com/joho/godotenv"
)

const demoProjectId = "demo"

func main() {
	_ = godotenv.Load()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetProjectIdInContext(ctx, demoProjectId)
	ctx = utils.SetUsernameInContext(ctx, "seed")
	ctx = utils.SetUserNameInContext(ctx, "Seed Tool")
	ctx = utils.SetIsAdminInContext(ctx, true)

	if _, err := models.CreateProject(ctx, &models.NewProject{
		ID:         demoProjectId,
		Name:       "Riverside Tower",
		Client:     "Acme Construction",
		Location:   "Denver, CO",
		JobNumbers: "JOB-1001,JOB-1002",
		Timezone:   "America/Denver",
	}); err != nil {
		log.Println("project already exists, continuing:", err)
	}

	users := []*models.NewUser{
		{ProjectId: demoProjectId, Username: "sarah.chen", Name: "Sarah Chen", Email: "sarah@example.com", Password: "demo1234", Role: models.RoleAdmin},
		{ProjectId: demoProjectId, Username: "mike.torres", Name: "Mike Torres", Email: "mike@example.com", Password: "demo1234", Role: models.RoleInspector},
		{ProjectId: demoProjectId, Username: "lisa.park", Name: "Lisa Park", Email: "lisa@example.com", Password: "demo1234", Role: models.RoleSupervisor},
	}
	for _, u := range users {
		if _, err := models.CreateUser(ctx, u); err != nil {
			log.Println("skipping user", u.Username+":", err)
		}
	}

	inspection, err := models.CreateInspection(ctx, &models.NewInspection{
		Title:         "Foundation pour - east wing",
		Type:          "structural",
		ScheduledDate: time.Now().Add(48 * time.Hour),
		Location:      "East wing, grid B4",
		Inspector:     "mike.torres",
		JobNumber:     "JOB-1001",
	})
	if err != nil {
		log.Fatal("seed inspection failed: ", err)
	}

	if _, err := models.CreateDeficiency(ctx, &models.NewDeficiency{
		Title:        "Exposed rebar at column C2",
		Description:  "Insufficient concrete cover on the north face.",
		Severity:     "high",
		Location:     "East wing, column C2",
		JobNumber:    "JOB-1001",
		InspectionId: inspection.ID,
		AssignedTo:   "mike.torres",
	}); err != nil {
		log.Fatal("seed deficiency failed: ", err)
	}

	log.Println("demo data seeded for project", demoProjectId)
}
