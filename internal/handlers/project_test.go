package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/capitao/athena-tasks/internal/models"
	"github.com/capitao/athena-tasks/internal/services"
	"github.com/capitao/athena-tasks/internal/store"
)

// ProjectHandlerTestSuite defines the test suite for ProjectHandler
type ProjectHandlerTestSuite struct {
	suite.Suite
	store  *store.Store
	tasks  *services.TaskService
	router *gin.Engine
}

// SetupTest runs before each test
func (suite *ProjectHandlerTestSuite) SetupTest() {
	st, err := store.New(suite.T().TempDir())
	suite.Require().NoError(err)
	suite.store = st
	suite.tasks = services.NewTaskService(st)

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()

	handler := NewProjectHandler(services.NewProjectService(st))
	suite.router.GET("/api/projects", handler.ListProjects)
	suite.router.POST("/api/projects", handler.CreateProject)
	suite.router.GET("/api/projects/:id", handler.GetProject)
	suite.router.POST("/api/projects/:id/status", handler.SetProjectStatus)
}

func (suite *ProjectHandlerTestSuite) request(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *ProjectHandlerTestSuite) decodeProject(w *httptest.ResponseRecorder) models.Project {
	var resp struct {
		Project models.Project `json:"project"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Project
}

func (suite *ProjectHandlerTestSuite) TestCreateAndGetProject() {
	w := suite.request(http.MethodPost, "/api/projects", gin.H{
		"name":  "Automation Tools",
		"code":  "AUT",
		"color": "#8B5CF6",
	})
	suite.Equal(http.StatusCreated, w.Code)
	created := suite.decodeProject(w)
	suite.Equal("proj_automation_tools", created.ID)
	suite.Equal(models.ProjectStatusActive, created.Status)

	w = suite.request(http.MethodGet, "/api/projects/"+created.ID, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal(created.ID, suite.decodeProject(w).ID)
}

func (suite *ProjectHandlerTestSuite) TestCreateProjectRejectsBadCode() {
	w := suite.request(http.MethodPost, "/api/projects", gin.H{"name": "Thing", "code": "toolong"})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Contains(w.Body.String(), "VALIDATION")
}

func (suite *ProjectHandlerTestSuite) TestStatusTransition() {
	w := suite.request(http.MethodPost, "/api/projects", gin.H{"name": "Pausable", "code": "PSE"})
	suite.Require().Equal(http.StatusCreated, w.Code)
	created := suite.decodeProject(w)

	w = suite.request(http.MethodPost, "/api/projects/"+created.ID+"/status", gin.H{"status": "paused"})
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal(models.ProjectStatusPaused, suite.decodeProject(w).Status)

	w = suite.request(http.MethodPost, "/api/projects/"+created.ID+"/status", gin.H{"status": "completed"})
	suite.Equal(http.StatusConflict, w.Code)
	suite.Contains(w.Body.String(), "INVALID_TRANSITION")
}

func (suite *ProjectHandlerTestSuite) TestCompleteBlockedByOpenTasks() {
	w := suite.request(http.MethodPost, "/api/projects", gin.H{"name": "Busy", "code": "BSY"})
	suite.Require().Equal(http.StatusCreated, w.Code)
	created := suite.decodeProject(w)

	for i := 0; i < 2; i++ {
		task, err := suite.tasks.Create(services.CreateTaskInput{
			Title:     "open project work",
			ProjectID: created.ID,
		})
		suite.Require().NoError(err)
		inProgress := models.TaskStatusInProgress
		_, err = suite.tasks.Update(task.ID, services.UpdateTaskInput{Status: &inProgress})
		suite.Require().NoError(err)
	}

	w = suite.request(http.MethodPost, "/api/projects/"+created.ID+"/status", gin.H{"status": "completed"})
	suite.Equal(http.StatusConflict, w.Code)
	suite.Contains(w.Body.String(), "REFERENTIAL")
	suite.Contains(w.Body.String(), "2 task(s)")
}

func TestProjectHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ProjectHandlerTestSuite))
}
