package service

import (
	"strings"

	"github.com/google/uuid"

	"github.com/xxxsen/docrag/internal/model"
)

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func shortID(prefix string) string {
	return prefix + "_" + newID()[:12]
}

// NewScope creates a fresh anonymous user with its first project.
func NewScope() model.Scope {
	return model.Scope{UserID: shortID("user"), ProjectID: shortID("project")}
}

func NewProjectID() string {
	return shortID("project")
}
