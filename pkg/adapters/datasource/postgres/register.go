package postgres

import (
	"github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

func init() {
	datasource.Register(datasource.EngineRegistration{
		Info: datasource.EngineInfo{
			Type:        models.EnginePostgreSQL,
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
			DefaultPort: DefaultPort(),
		},
		FromMap: FromMap,
	})
}
