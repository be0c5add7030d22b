package flow

import (
	"context"
	"errors"
	"ringiflow/bizerror"
	"ringiflow/idgen"
	"ringiflow/persistence"
	"ringiflow/session"
	"strconv"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateDefinitionFunc  = CreateDefinition
	DetailDefinitionFunc  = DetailDefinition
	QueryDefinitionsFunc  = QueryDefinitions
	PublishDefinitionFunc = PublishDefinition
	ArchiveDefinitionFunc = ArchiveDefinition
)

func CreateDefinition(ctx context.Context, c *DefinitionCreation, sec *session.Context) (*WorkflowDefinitionDetail, error) {
	for _, t := range c.StepTemplates {
		if t.Type != StepTypeStart && t.Type != StepTypeApproval && t.Type != StepTypeEnd {
			return nil, bizerror.ErrUnknownStepType
		}
	}

	detail := &WorkflowDefinitionDetail{
		WorkflowDefinition: WorkflowDefinition{
			ID:         idgen.NextID(idWorker),
			Name:       c.Name,
			Status:     DefinitionStatusDraft,
			CreatorID:  sec.Identity.ID,
			CreateTime: types.CurrentTimestamp(),
		},
	}
	for idx, t := range c.StepTemplates {
		detail.StepTemplates = append(detail.StepTemplates, StepTemplate{
			ID: idgen.NextID(idWorker), DefinitionID: detail.ID,
			OrderNum: idx + 1, Name: t.Name, Type: t.Type,
		})
	}

	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&detail.WorkflowDefinition).Error; err != nil {
			return err
		}
		for idx := range detail.StepTemplates {
			if err := tx.Create(&detail.StepTemplates[idx]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return detail, nil
}

func DetailDefinition(ctx context.Context, id types.ID) (*WorkflowDefinitionDetail, error) {
	detail := WorkflowDefinitionDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	if err := db.Where(&WorkflowDefinition{ID: id}).First(&detail.WorkflowDefinition).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	if err := db.Where(StepTemplate{DefinitionID: id}).Order("order_num ASC").Find(&detail.StepTemplates).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

func QueryDefinitions(ctx context.Context) ([]WorkflowDefinition, error) {
	definitions := []WorkflowDefinition{}
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	if err := db.Where("status != ?", DefinitionStatusArchived).Order("ID ASC").Find(&definitions).Error; err != nil {
		return nil, err
	}
	return definitions, nil
}

func PublishDefinition(ctx context.Context, id types.ID, sec *session.Context) error {
	return updateDefinitionStatus(ctx, id, DefinitionStatusDraft, DefinitionStatusPublished, "publish")
}

func ArchiveDefinition(ctx context.Context, id types.ID, sec *session.Context) error {
	return updateDefinitionStatus(ctx, id, DefinitionStatusPublished, DefinitionStatusArchived, "archive")
}

func updateDefinitionStatus(ctx context.Context, id types.ID, from, to, action string) error {
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		definition := WorkflowDefinition{}
		if err := tx.Where(&WorkflowDefinition{ID: id}).First(&definition).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return bizerror.ErrNotFound
			}
			return err
		}
		if definition.Status != from {
			return &bizerror.StateError{Subject: "definition", Operation: action, Current: definition.Status, Expected: from}
		}
		upd := tx.Model(&WorkflowDefinition{}).Where("id = ? AND status = ?", id, from).
			Update("status", to)
		if err := upd.Error; err != nil {
			return err
		}
		if upd.RowsAffected != 1 {
			return errors.New("expected affected row is 1, but actual is " + strconv.FormatInt(upd.RowsAffected, 10))
		}
		return nil
	})
}
