package main

import (
	"fmt"
	"log"

	"editorial-workflow-api/config"
	"editorial-workflow-api/services"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// commandContext lazily connects to the database the first time a command needs it.
type commandContext struct {
	db       *gorm.DB
	workflow *services.Workflow
	loaded   bool
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) loadEnv() {
	if c.loaded {
		return
	}
	c.loaded = true
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

func (c *commandContext) ensureDB() (*gorm.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	c.loadEnv()
	db, err := config.OpenDB()
	if err != nil {
		return nil, err
	}
	config.DB = db
	c.db = db
	return db, nil
}

func (c *commandContext) ensureWorkflow() (*services.Workflow, error) {
	if c.workflow != nil {
		return c.workflow, nil
	}
	if _, err := c.ensureDB(); err != nil {
		return nil, err
	}
	settings, err := config.LoadWorkflowSettings()
	if err != nil {
		return nil, fmt.Errorf("load workflow settings: %w", err)
	}
	c.workflow = services.NewDefaultWorkflow(settings)
	return c.workflow, nil
}
