package main

import (
	"context"
	"io"
	"net/http"
	"ringiflow/bizerror"
	"ringiflow/client/es"
	"ringiflow/common"
	"ringiflow/domain/flow"
	"ringiflow/domain/instance"
	"ringiflow/event"
	"ringiflow/indices"
	"ringiflow/infra/tracing"
	"ringiflow/persistence"
	"ringiflow/servehttp"
	"ringiflow/session"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	jaegerlog "github.com/uber/jaeger-client-go/log"
	"github.com/uber/jaeger-lib/metrics"
)

func main() {
	logrus.Infoln("service start")

	closer := bootstrapTracing()
	defer closer.Close()

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v\n", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v\n", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v\n", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(context.Background()).AutoMigrate(
		&flow.WorkflowDefinition{}, &flow.StepTemplate{},
		&instance.WorkflowInstance{}, &instance.WorkflowStep{}, &instance.WorkflowComment{},
		&event.EventRecord{}).Error
	if err != nil {
		logrus.Fatalf("database migration failed %v\n", err)
	}

	es.CreateClientFromEnv()
	event.EventHandlers = append(event.EventHandlers, indices.IndexInstanceEventHandle)

	engine := gin.Default()
	engine.Use(tracing.TracingIngress())
	engine.Use(bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.GetServiceName())
	})

	servehttp.RegisterDefinitionHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterInstanceHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterStepHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterTaskHandler(engine, session.SimpleAuthFilter())

	servehttp.StartHTTPServer(engine)
}

func bootstrapTracing() io.Closer {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		logrus.Fatalf("parse tracing config failed %v\n", err)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = common.GetServiceName()
	}

	tracer, closer, err := cfg.NewTracer(
		jaegercfg.Logger(jaegerlog.StdLogger),
		jaegercfg.Metrics(metrics.NullFactory),
	)
	if err != nil {
		logrus.Fatalf("tracer initialization failed %v\n", err)
	}
	opentracing.SetGlobalTracer(tracer)
	return closer
}
