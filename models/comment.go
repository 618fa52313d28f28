package models

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"gorm.io/gorm"
)

var commentMentionPattern = regexp.MustCompile(`@[\w-]+`)

type Comment struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ProjectId  string    `gorm:"index;not null;size:64" json:"project_id"`
	EntityType string    `gorm:"size:50;index;not null" json:"entity_type" binding:"required"`
	EntityId   int       `gorm:"index;not null" json:"entity_id" binding:"required"`
	Author     string    `gorm:"size:100;not null" json:"author"`
	Text       string    `gorm:"type:text;not null" json:"text" binding:"required"`
	Mentions   string    `gorm:"type:text" json:"mentions"`
	Reactions  string    `gorm:"type:text" json:"reactions"`
	Edited     bool      `gorm:"not null;default:false" json:"edited"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewComment struct {
	EntityType string `json:"entity_type" binding:"required"`
	EntityId   int    `json:"entity_id" binding:"required"`
	Text       string `json:"text" binding:"required"`
}

// ParseCommentMentions extracts @-mentioned usernames in order of first
// appearance, without the @ prefix.
func ParseCommentMentions(text string) []string {
	var mentions []string
	seen := map[string]bool{}
	for _, match := range commentMentionPattern.FindAllString(text, -1) {
		name := strings.TrimPrefix(match, "@")
		if !seen[name] {
			seen[name] = true
			mentions = append(mentions, name)
		}
	}
	return mentions
}

func (c *Comment) MentionList() []string {
	if c.Mentions == "" {
		return nil
	}
	return strings.Split(c.Mentions, ",")
}

func (c *Comment) ReactionMap() map[string][]string {
	reactions := map[string][]string{}
	if c.Reactions == "" {
		return reactions
	}
	if err := json.Unmarshal([]byte(c.Reactions), &reactions); err != nil {
		return map[string][]string{}
	}
	return reactions
}

func CreateComment(ctx context.Context, input *NewComment) (*Comment, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}
	_, userName, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	mentions := ParseCommentMentions(input.Text)
	comment := Comment{
		ProjectId:  projectId,
		EntityType: input.EntityType,
		EntityId:   input.EntityId,
		Author:     userName,
		Text:       input.Text,
		Mentions:   strings.Join(mentions, ","),
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		for _, mention := range mentions {
			if err := createNotification(tx, &Notification{
				Type:          "collaboration",
				Severity:      "info",
				Title:         "You were mentioned",
				Message:       userName + " mentioned you in a comment",
				ReferenceID:   comment.ID,
				ReferenceType: "comment",
				Target:        mention,
			}); err != nil {
				return err
			}
		}
		return enqueueChangeFeed(tx, "comments", comment.ID, ChangeFeedCreate, comment)
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// AddReaction records the user under the emoji. Reacting again with
// the same emoji is a no-op and leaves the row untouched.
func AddReaction(ctx context.Context, id int, emoji string) (*Comment, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}
	_, userName, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	comment, err := utils.FetchModel[Comment](ctx, projectId, id)
	if err != nil {
		return nil, err
	}

	reactions := comment.ReactionMap()
	for _, user := range reactions[emoji] {
		if user == userName {
			return comment, nil
		}
	}
	reactions[emoji] = append(reactions[emoji], userName)

	encoded, err := json.Marshal(reactions)
	if err != nil {
		return nil, err
	}
	comment.Reactions = string(encoded)
	if err := db.WithContext(ctx).Save(comment).Error; err != nil {
		return nil, err
	}
	_ = utils.RemoveRedis[Comment](comment.ID, projectId)
	return comment, nil
}

// EditComment replaces the comment text. Only the author may edit;
// anyone else gets the comment back unchanged. Mentions are re-parsed
// and users newly mentioned by the edit are notified.
func EditComment(ctx context.Context, id int, text string) (*Comment, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}
	_, userName, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	comment, err := utils.FetchModel[Comment](ctx, projectId, id)
	if err != nil {
		return nil, err
	}
	if comment.Author != userName {
		return comment, nil
	}

	previous := map[string]bool{}
	for _, mention := range comment.MentionList() {
		previous[mention] = true
	}
	mentions := ParseCommentMentions(text)
	var added []string
	for _, mention := range mentions {
		if !previous[mention] {
			added = append(added, mention)
		}
	}

	before := *comment
	comment.Text = text
	comment.Mentions = strings.Join(mentions, ",")
	comment.Edited = true

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(comment).Error; err != nil {
			return err
		}
		for _, mention := range added {
			if err := createNotification(tx, &Notification{
				Type:          "collaboration",
				Severity:      "info",
				Title:         "You were mentioned",
				Message:       userName + " mentioned you in a comment",
				ReferenceID:   comment.ID,
				ReferenceType: "comment",
				Target:        mention,
			}); err != nil {
				return err
			}
		}
		if err := createHistory(tx, "U", comment.ID, "comment", before, comment, "Comment edited."); err != nil {
			return err
		}
		return enqueueChangeFeed(tx, "comments", comment.ID, ChangeFeedUpdate, comment)
	})
	if err != nil {
		return nil, err
	}
	_ = utils.RemoveRedis[Comment](comment.ID, projectId)
	return comment, nil
}

func GetComments(ctx context.Context, entityType string, entityId int) ([]*Comment, error) {

	db := config.GetDB()
	projectId, err := requireProjectId(ctx)
	if err != nil {
		return nil, err
	}

	var results []*Comment
	err = db.WithContext(ctx).
		Where("project_id = ? AND entity_type = ? AND entity_id = ?", projectId, entityType, entityId).
		Order("created_at").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
