package mssql

import (
	"github.com/ekaya-inc/ekaya-ingest/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

func init() {
	datasource.Register(datasource.EngineRegistration{
		Info: datasource.EngineInfo{
			Type:        models.EngineMSSQL,
			DisplayName: "SQL Server",
			Description: "Connect to Microsoft SQL Server 2016+, Azure SQL Database",
			DefaultPort: DefaultPort(),
		},
		FromMap: FromMap,
	})
}
