package instance

import (
	"context"
	"errors"
	"fmt"
	"ringiflow/bizerror"
	"ringiflow/idgen"
	"ringiflow/persistence"
	"ringiflow/session"
	"unicode/utf8"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// commentBodyMaxLength bounds a comment body, counted in runes.
const commentBodyMaxLength = 2000

var (
	CreateCommentFunc = CreateComment
	ListCommentsFunc  = ListComments
)

// WorkflowComment is one collaboration message attached to an instance.
type WorkflowComment struct {
	ID         types.ID `json:"id" sql:"type:BIGINT UNSIGNED NOT NULL" gorm:"primary_key"`
	InstanceID types.ID `json:"instanceId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Body string `json:"body" sql:"type:TEXT"`

	CreatorID   types.ID        `json:"creatorId"`
	CreatorName string          `json:"creatorName"`
	CreateTime  types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (r *WorkflowComment) TableName() string {
	return "workflow_comments"
}

type CommentCreation struct {
	Body string `json:"body" binding:"required"`
}

// CreateComment posts a comment on an instance. Only participants may
// comment: the creator of the instance, or the approver of one of its
// steps.
func CreateComment(ctx context.Context, instanceID types.ID, creation *CommentCreation, sec *session.Context) (*WorkflowComment, error) {
	if creation.Body == "" {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("comment body is required")}
	}
	if utf8.RuneCountInString(creation.Body) > commentBodyMaxLength {
		return nil, &bizerror.ErrBadParam{Cause: fmt.Errorf("comment body is limited to %d characters", commentBodyMaxLength)}
	}

	record := &WorkflowComment{}
	err1 := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		instanceRecord, err := findInstance(tx, instanceID)
		if err != nil {
			return err
		}
		participant, err := isParticipant(tx, instanceRecord, sec.Identity.ID)
		if err != nil {
			return err
		}
		if !participant {
			return bizerror.ErrForbidden
		}

		*record = WorkflowComment{
			ID:          idgen.NextID(instanceIdWorker),
			InstanceID:  instanceRecord.ID,
			Body:        creation.Body,
			CreatorID:   sec.Identity.ID,
			CreatorName: sec.Identity.Name,
			CreateTime:  types.CurrentTimestamp(),
		}
		return tx.Create(record).Error
	})
	if err1 != nil {
		return nil, err1
	}
	return record, nil
}

// ListComments returns the comments of an instance in posting order.
func ListComments(ctx context.Context, instanceID types.ID) ([]WorkflowComment, error) {
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	if _, err := findInstance(db, instanceID); err != nil {
		return nil, err
	}

	records := []WorkflowComment{}
	if err := db.Where(&WorkflowComment{InstanceID: instanceID}).
		Order("create_time ASC, id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func isParticipant(db *gorm.DB, record *WorkflowInstance, userID types.ID) (bool, error) {
	if record.CreatorID == userID {
		return true, nil
	}
	var count int
	if err := db.Model(&WorkflowStep{}).
		Where(&WorkflowStep{InstanceID: record.ID, ApproverID: userID}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
