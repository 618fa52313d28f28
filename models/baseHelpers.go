package models

import (
	"context"
	"errors"

	"bitbucket.org/sitefocus/qctrack_backend/utils"
)

type HasId struct {
	ID int `json:"id"`
}

// GetResource fetches a project-scoped record by id, answering from the
// redis cache when warm and falling back to the database.
func GetResource[T any](ctx context.Context, id int) (*T, error) {
	projectId, ok := utils.GetProjectIdFromContext(ctx)
	if !ok || projectId == "" {
		return nil, errors.New("project id is required")
	}

	if cached, err := utils.RetrieveRedis[T](id); err == nil {
		return cached, nil
	}

	result, err := utils.FetchModel[T](ctx, projectId, id)
	if err != nil {
		return nil, err
	}
	_ = utils.StoreRedis[T](result, id)
	return result, nil
}

func requireProjectId(ctx context.Context) (string, error) {
	projectId, ok := utils.GetProjectIdFromContext(ctx)
	if !ok || projectId == "" {
		return "", errors.New("project id is required")
	}
	return projectId, nil
}

func requireUser(ctx context.Context) (int, string, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return 0, "", errors.New("user id is required")
	}
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok || userName == "" {
		return 0, "", errors.New("user name is required")
	}
	return userId, userName, nil
}

// Pagination clamps page inputs; pages are 1-based.
func Pagination(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}
