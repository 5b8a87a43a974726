package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskPostalCatalogRefresh = "postal.catalog.refresh"

type PostalCatalogRefreshPayload struct {
	CountryCode string `json:"countryCode"`
}

func NewPostalCatalogRefreshTask(payload PostalCatalogRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPostalCatalogRefresh, data), nil
}

func ParsePostalCatalogRefreshPayload(task *asynq.Task) (PostalCatalogRefreshPayload, error) {
	var payload PostalCatalogRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PostalCatalogRefreshPayload{}, err
	}
	return payload, nil
}
