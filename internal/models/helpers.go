package models

import (
	"fmt"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// RecordKey formats a RecordID as "table:id" for logs and events.
// Non-string IDs are formatted with %v.
func RecordKey(id surrealmodels.RecordID) string {
	if id.Table == "" && id.ID == nil {
		return ""
	}
	return fmt.Sprintf("%s:%v", id.Table, id.ID)
}
