package mysql

import (
	"github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

func init() {
	datasource.Register(datasource.EngineRegistration{
		Info: datasource.EngineInfo{
			Type:        models.EngineMySQL,
			DisplayName: "MySQL",
			Description: "Connect to MySQL 5.7+, MariaDB, Aurora MySQL",
			DefaultPort: DefaultPort(),
		},
		FromMap: FromMap,
	})
}
