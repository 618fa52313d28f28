package models_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/models"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
)

// Reactions are add-only and idempotent, and edits are restricted to
// the comment author, with mention notifications only for users the
// edit newly mentions.
func TestCommentReactionAndEdit(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "qctrack_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	ctx = utils.SetUserNameInContext(ctx, "Test Inspector")
	ctx = utils.SetProjectIdInContext(ctx, "collab-test")
	ctx = utils.SetIsAdminInContext(ctx, true)

	if _, err := models.CreateProject(ctx, &models.NewProject{
		ID:   "collab-test",
		Name: "Collaboration Test Site",
	}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	comment, err := models.CreateComment(ctx, &models.NewComment{
		EntityType: "inspection",
		EntityId:   1,
		Text:       "forms stripped, please verify @mike",
	})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	// Reacting twice with the same emoji leaves one entry.
	if _, err := models.AddReaction(ctx, comment.ID, "👍"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}
	reacted, err := models.AddReaction(ctx, comment.ID, "👍")
	if err != nil {
		t.Fatalf("AddReaction repeat: %v", err)
	}
	if users := reacted.ReactionMap()["👍"]; len(users) != 1 || users[0] != "Test Inspector" {
		t.Fatalf("reaction bucket = %v, want the user exactly once", users)
	}

	// A non-author edit is ignored.
	otherCtx := utils.SetUserIdInContext(context.Background(), 2)
	otherCtx = utils.SetUsernameInContext(otherCtx, "other@local")
	otherCtx = utils.SetUserNameInContext(otherCtx, "Other Inspector")
	otherCtx = utils.SetProjectIdInContext(otherCtx, "collab-test")
	unchanged, err := models.EditComment(otherCtx, comment.ID, "hijacked")
	if err != nil {
		t.Fatalf("EditComment(non-author): %v", err)
	}
	if unchanged.Text != comment.Text || unchanged.Edited {
		t.Fatalf("non-author edit changed the comment: %+v", unchanged)
	}

	// The author's edit re-parses mentions and notifies only the newly
	// added one.
	edited, err := models.EditComment(ctx, comment.ID, "forms stripped, please verify @mike cc @lisa")
	if err != nil {
		t.Fatalf("EditComment: %v", err)
	}
	if !edited.Edited {
		t.Fatal("edited flag not set")
	}
	if got := edited.MentionList(); len(got) != 2 || got[0] != "mike" || got[1] != "lisa" {
		t.Fatalf("mentions = %v, want [mike lisa]", got)
	}

	notifications, err := models.GetNotifications(ctx, true, 1, 50)
	if err != nil {
		t.Fatalf("GetNotifications: %v", err)
	}
	mikeCount, lisaCount := 0, 0
	for _, n := range notifications {
		if n.Title != "You were mentioned" || n.ReferenceID != comment.ID {
			continue
		}
		switch n.Target {
		case "mike":
			mikeCount++
		case "lisa":
			lisaCount++
		}
	}
	if mikeCount != 1 {
		t.Fatalf("mike mention notifications = %d, want only the one from creation", mikeCount)
	}
	if lisaCount != 1 {
		t.Fatalf("lisa mention notifications = %d, want one from the edit", lisaCount)
	}
}
