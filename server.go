package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/middlewares"
	"bitbucket.org/sitefocus/qctrack_backend/models"
	"bitbucket.org/sitefocus/qctrack_backend/models/reports"
	"bitbucket.org/sitefocus/qctrack_backend/store"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"bitbucket.org/sitefocus/qctrack_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("qctrack-backend")

// liveBroker fans committed change feed events out to connected /events
// streams. It only carries events received from Pub/Sub push, so every
// instance sees changes made through any instance.
var liveBroker = store.NewBroker()

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
}

func requireSession(c *gin.Context) bool {
	if _, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	return true
}

func authorizeAdminOnly(ctx context.Context) error {
	isAdmin, ok := utils.GetIsAdminFromContext(ctx)
	if !ok || !isAdmin {
		return errors.New("admin access required")
	}
	return nil
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func optionalQuery(c *gin.Context, name string) *string {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return nil
	}
	return &v
}

/* auth */

func signupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": info})
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		if _, err := models.Logout(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
}

func changePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		var req struct {
			OldPassword string `json:"old_password" binding:"required"`
			NewPassword string `json:"new_password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		user, err := models.ChangePassword(c.Request.Context(), req.OldPassword, req.NewPassword)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}

/* projects */

func createProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var input models.NewProject
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		project, err := models.CreateProject(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": project})
	}
}

/* inspections */

func createInspectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		var input models.NewInspection
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		inspection, err := models.CreateInspection(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": inspection})
	}
}

func listInspectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		results, err := models.GetInspections(c.Request.Context(), optionalQuery(c, "status"), optionalQuery(c, "job_number"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

func getInspectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		inspection, err := models.GetInspection(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": inspection})
	}
}

func updateInspectionStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		inspection, err := models.UpdateInspectionStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": inspection})
	}
}

func completeChecklistItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		itemId := c.Param("itemId")
		inspection, err := models.CompleteInspectionChecklistItem(c.Request.Context(), id, itemId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": inspection})
	}
}

func dueInspectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		withinHours := 24
		if v, err := strconv.Atoi(c.Query("within_hours")); err == nil && v > 0 {
			withinHours = v
		}
		results, err := models.GetDueInspections(c.Request.Context(), withinHours)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

func overdueInspectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		results, err := models.GetOverdueInspections(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

/* checklist templates */

func createTemplateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		var input models.NewChecklistTemplate
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		template, err := models.CreateChecklistTemplate(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": template})
	}
}

func listTemplatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		results, err := models.GetChecklistTemplates(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

/* deficiencies */

func createDeficiencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		var input models.NewDeficiency
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		deficiency, err := models.CreateDeficiency(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": deficiency})
	}
}

func listDeficienciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		results, err := models.GetDeficiencies(c.Request.Context(),
			optionalQuery(c, "status"), optionalQuery(c, "severity"), optionalQuery(c, "job_number"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

func getDeficiencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		deficiency, err := models.GetDeficiency(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": deficiency})
	}
}

func resolveDeficiencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req struct {
			Resolution string `json:"resolution" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		deficiency, err := models.ResolveDeficiency(c.Request.Context(), id, req.Resolution)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": deficiency})
	}
}

/* documents */

func createDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		var input models.NewDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		document, err := models.CreateDocument(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": document})
	}
}

func listDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		results, err := models.GetDocuments(c.Request.Context(),
			optionalQuery(c, "type"), optionalQuery(c, "tag"), optionalQuery(c, "job_number"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

func getDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		document, err := models.GetDocument(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": document})
	}
}

func updateDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.DocumentUpdateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		document, err := models.UpdateDocument(c.Request.Context(), id, &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": document})
	}
}

func archiveDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		document, err := models.ArchiveDocument(c.Request.Context(), id, req.Reason)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": document})
	}
}

/* photos */

func listPhotosHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		var inspectionId *int
		if v, err := strconv.Atoi(c.Query("inspection_id")); err == nil && v > 0 {
			inspectionId = &v
		}
		results, err := models.GetPhotos(c.Request.Context(),
			optionalQuery(c, "job_number"), inspectionId, optionalQuery(c, "tag"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

func getPhotoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		photo, err := models.GetPhoto(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": photo})
	}
}

func analyzePhotoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "photo.analyze")
		defer span.End()
		photo, err := models.AnalyzePhoto(ctx, id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": photo})
	}
}

func addPhotoTagHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req struct {
			Tag string `json:"tag" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		photo, err := models.AddPhotoTag(c.Request.Context(), id, req.Tag)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": photo})
	}
}

func updatePhotoDescriptionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req struct {
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		photo, err := models.UpdatePhotoDescription(c.Request.Context(), id, req.Description)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": photo})
	}
}

/* collaboration */

func createCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		var input models.NewComment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		comment, err := models.CreateComment(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": comment})
	}
}

func listCommentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		entityType := strings.TrimSpace(c.Query("entity_type"))
		entityId, _ := strconv.Atoi(c.Query("entity_id"))
		if entityType == "" || entityId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entity_type and entity_id are required"})
			return
		}
		results, err := models.GetComments(c.Request.Context(), entityType, entityId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

func addReactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req struct {
			Emoji string `json:"emoji" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		comment, err := models.AddReaction(c.Request.Context(), id, req.Emoji)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": comment})
	}
}

func editCommentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		comment, err := models.EditComment(c.Request.Context(), id, req.Text)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": comment})
	}
}

func recordActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		var input models.NewActivity
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		activity, err := models.RecordActivity(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": activity})
	}
}

func listActivitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		page, _ := strconv.Atoi(c.Query("page"))
		pageSize, _ := strconv.Atoi(c.Query("page_size"))
		results, err := models.GetActivities(c.Request.Context(), page, pageSize)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

func heartbeatHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		if err := models.Heartbeat(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": true})
	}
}

func activeUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		users, err := models.ActiveUsers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": users})
	}
}

/* notifications */

func listNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		page, _ := strconv.Atoi(c.Query("page"))
		pageSize, _ := strconv.Atoi(c.Query("page_size"))
		unreadOnly := strings.EqualFold(c.Query("unread_only"), "true")
		results, err := models.GetNotifications(c.Request.Context(), unreadOnly, page, pageSize)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

func unreadCountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		count, err := models.GetUnreadNotificationCount(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": count})
	}
}

func markNotificationReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		notification, err := models.MarkNotificationRead(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": notification})
	}
}

func markAllNotificationsReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		count, err := models.MarkAllNotificationsRead(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": count})
	}
}

/* analytics and reports */

func analyticsSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		summary, err := models.GetAnalyticsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": summary})
	}
}

func deficiencyAgingExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		rows, err := reports.GetDeficiencyAgingReport(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		exporters := make([]reports.ExcelExporter, 0, len(rows))
		for _, r := range rows {
			exporters = append(exporters, r)
		}
		if err := reports.WriteExcel(c.Writer, "deficiencyAging.xlsx", exporters,
			"Severity", "Open", "Resolved", "Avg Open Hours", "Avg Resolution Hours", "Oldest Open Hours",
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write file"})
		}
	}
}

func inspectionSummaryExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		rows, err := reports.GetInspectionSummaryReport(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		exporters := make([]reports.ExcelExporter, 0, len(rows))
		for _, r := range rows {
			exporters = append(exporters, r)
		}
		if err := reports.WriteExcel(c.Writer, "inspectionSummary.xlsx", exporters,
			"Inspection Type", "Total", "Completed", "Failed", "Avg Duration (mins)",
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write file"})
		}
	}
}

/* change feed fan-in and live events */

type pubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// changeFeedPushHandler receives Pub/Sub push deliveries of committed
// change feed rows and republishes them to this instance's live event
// broker. Malformed payloads are acked and dropped so Pub/Sub does not
// redeliver them forever.
func changeFeedPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "changeFeedPushHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		var envelope pubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			config.LogError(logger, "server.go", "changeFeedPushHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var m config.ChangeFeedMessage
		if err := json.Unmarshal(envelope.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "changeFeedPushHandler", "Unmarshal changefeed message", envelope.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		liveBroker.Publish(store.Event{
			Property: m.Table,
			EntityId: strconv.Itoa(m.RowId),
		})
		c.Status(http.StatusNoContent)
	}
}

// eventsHandler streams live change events over SSE until the client
// disconnects.
func eventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		events := make(chan store.Event, 64)
		unsubscribe := liveBroker.Subscribe(func(e store.Event) {
			select {
			case events <- e:
			default:
				// slow client; drop rather than block the broker
			}
		})
		defer unsubscribe()

		c.Stream(func(w io.Writer) bool {
			select {
			case <-c.Request.Context().Done():
				return false
			case e := <-events:
				c.SSEvent("change", gin.H{"property": e.Property, "entity_id": e.EntityId})
				return true
			}
		})
	}
}

/* ops */

type changeFeedReplayRequest struct {
	RecordId int `json:"record_id"`
}

// changeFeedReplayHandler resets a DEAD or FAILED change feed row so
// the dispatcher picks it up again. Admin only.
func changeFeedReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req changeFeedReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "record_id is required"})
			return
		}

		db := config.GetDB()
		result := db.WithContext(c.Request.Context()).
			Model(&models.ChangeFeedRecord{}).
			Where("id = ? AND publish_status IN ?", req.RecordId,
				[]string{models.OutboxPublishStatusDead, models.OutboxPublishStatusFailed}).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusPending,
				"publish_attempts":   0,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
				"last_publish_error": nil,
			})
		if result.Error != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": result.Error.Error()})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "record not found or not replayable"})
			return
		}

		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"record_id":      req.RecordId,
			"publish_status": models.OutboxPublishStatusPending,
			"correlation_id": cid,
		})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/auth/signup", signupHandler())
	r.POST("/auth/login", loginHandler())
	r.POST("/auth/logout", logoutHandler())
	r.POST("/auth/change-password", changePasswordHandler())

	r.POST("/projects", createProjectHandler())

	r.POST("/inspections", createInspectionHandler())
	r.GET("/inspections", listInspectionsHandler())
	r.GET("/inspections/due", dueInspectionsHandler())
	r.GET("/inspections/overdue", overdueInspectionsHandler())
	r.GET("/inspections/:id", getInspectionHandler())
	r.PUT("/inspections/:id/status", updateInspectionStatusHandler())
	r.POST("/inspections/:id/checklist/:itemId/complete", completeChecklistItemHandler())

	r.POST("/templates", createTemplateHandler())
	r.GET("/templates", listTemplatesHandler())

	r.POST("/deficiencies", createDeficiencyHandler())
	r.GET("/deficiencies", listDeficienciesHandler())
	r.GET("/deficiencies/:id", getDeficiencyHandler())
	r.POST("/deficiencies/:id/resolve", resolveDeficiencyHandler())

	r.POST("/documents", createDocumentHandler())
	r.GET("/documents", listDocumentsHandler())
	r.GET("/documents/:id", getDocumentHandler())
	r.PUT("/documents/:id", updateDocumentHandler())
	r.POST("/documents/:id/archive", archiveDocumentHandler())

	r.POST("/photos/upload", photoUploadHandler())
	r.GET("/photos", listPhotosHandler())
	r.GET("/photos/:id", getPhotoHandler())
	r.POST("/photos/:id/analyze", analyzePhotoHandler())
	r.POST("/photos/:id/tags", addPhotoTagHandler())
	r.PUT("/photos/:id/description", updatePhotoDescriptionHandler())
	r.GET("/objects", objectHandler())

	r.POST("/comments", createCommentHandler())
	r.GET("/comments", listCommentsHandler())
	r.PUT("/comments/:id", editCommentHandler())
	r.POST("/comments/:id/reactions", addReactionHandler())

	r.POST("/activities", recordActivityHandler())
	r.GET("/activities", listActivitiesHandler())
	r.POST("/presence/heartbeat", heartbeatHandler())
	r.GET("/presence", activeUsersHandler())

	r.GET("/notifications", listNotificationsHandler())
	r.GET("/notifications/unread-count", unreadCountHandler())
	r.POST("/notifications/:id/read", markNotificationReadHandler())
	r.POST("/notifications/read-all", markAllNotificationsReadHandler())

	r.GET("/analytics/summary", analyticsSummaryHandler())
	r.GET("/reports/deficiency-aging.xlsx", deficiencyAgingExportHandler())
	r.GET("/reports/inspection-summary.xlsx", inspectionSummaryExportHandler())

	r.POST("/pubsub", changeFeedPushHandler())
	r.GET("/events", eventsHandler())

	// Ops tooling (admin only): replay change feed rows that were marked DEAD/FAILED.
	r.POST("/internal/ops/changefeed/replay", changeFeedReplayHandler())

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Background workers: change feed dispatcher (publishes AFTER
	// commit), activity retention and analysis retry.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewChangeFeedDispatcher(db, logger).Run(workerCtx)
	go workflow.RunActivityCleanup(workerCtx, logger)
	go workflow.RunAnalysisRetry(workerCtx, logger)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelWorkers()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP()

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
