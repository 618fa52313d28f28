package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/models"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxUploadSizeBytes int64 = 10 * 1024 * 1024

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// photoUploadHandler accepts a multipart site photo, stores it and a
// thumbnail in GCS, records the photo row and kicks off analysis in
// the background.
func photoUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		projectId, ok := utils.GetProjectIdFromContext(c.Request.Context())
		if !ok || projectId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
			return
		}
		mimeType := fileHeader.Header.Get("Content-Type")
		if !imageMimeTypes[mimeType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}

		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		if ext == "" {
			ext = ".jpg"
		}
		objectKey := path.Join(projectId, "photos", uuid.New().String()+ext)

		ctx := c.Request.Context()
		if err := utils.UploadBytesToGCS(ctx, objectKey, data, mimeType); err != nil {
			logger.WithFields(logrus.Fields{
				"field":      "photoUploadHandler",
				"object_key": objectKey,
			}).Error("upload failed: " + err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}

		thumbnailKey, err := createThumbnail(ctx, objectKey, data)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field":      "photoUploadHandler",
				"object_key": objectKey,
			}).Error("thumbnail failed: " + err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate thumbnail"})
			return
		}

		inspectionId, _ := strconv.Atoi(c.PostForm("inspection_id"))
		deficiencyId, _ := strconv.Atoi(c.PostForm("deficiency_id"))
		var tags []string
		if raw := strings.TrimSpace(c.PostForm("tags")); raw != "" {
			tags = strings.Split(raw, ",")
		}

		photo, err := models.CreatePhoto(ctx, &models.NewPhotoInput{
			Filename:     fileHeader.Filename,
			Url:          utils.BuildObjectAccessURL(objectKey),
			ThumbnailUrl: utils.BuildObjectAccessURL(thumbnailKey),
			Description:  c.PostForm("description"),
			JobNumber:    c.PostForm("job_number"),
			InspectionId: inspectionId,
			DeficiencyId: deficiencyId,
			Tags:         tags,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Analysis runs out of band; clients poll the photo or wait on
		// the analyze endpoint.
		go func(photoCtx context.Context, id int) {
			if _, err := models.AnalyzePhoto(photoCtx, id); err != nil {
				logger.WithFields(logrus.Fields{
					"field":    "photoUploadHandler",
					"photo_id": id,
				}).Error("background analysis failed: " + err.Error())
			}
		}(context.WithoutCancel(ctx), photo.ID)

		logger.WithFields(logrus.Fields{
			"project_id": projectId,
			"object_key": objectKey,
			"photo_id":   photo.ID,
		}).Info("[photo.upload]")

		c.JSON(http.StatusOK, gin.H{"data": photo})
	}
}

// objectHandler streams a stored object back to the client.
func objectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		objectKey := strings.TrimSpace(c.Query("key"))
		if objectKey == "" || strings.Contains(objectKey, "..") || strings.HasPrefix(objectKey, "/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
			return
		}

		client, err := utils.GetGCSClient(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage client error"})
			return
		}
		defer client.Close()

		bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
		if bucket == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "GCS_BUCKET is required"})
			return
		}
		obj := client.Bucket(bucket).Object(objectKey)
		attrs, err := obj.Attrs(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}
		reader, err := obj.NewReader(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}
		defer reader.Close()

		if attrs.ContentType != "" {
			c.Writer.Header().Set("Content-Type", attrs.ContentType)
		}
		if attrs.Size > 0 {
			c.Writer.Header().Set("Content-Length", fmt.Sprintf("%d", attrs.Size))
		}
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, reader)
	}
}

func createThumbnail(ctx context.Context, objectKey string, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return "", err
	}

	thumbnailKey := thumbnailObjectKey(objectKey)
	if err := utils.UploadBytesToGCS(ctx, thumbnailKey, buf.Bytes(), "image/jpeg"); err != nil {
		return "", err
	}
	return thumbnailKey, nil
}

func thumbnailObjectKey(objectKey string) string {
	dir, filename := path.Split(objectKey)
	return path.Join(dir, "thumbnails", filename)
}
