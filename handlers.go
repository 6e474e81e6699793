package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"os"
	"strconv"
	"time"

	"emisor/models"
	"emisor/pkg/emission"
	"emisor/pkg/padron"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/proyectos", createProjectHandler)
	authGroup.GET("/proyectos", listProjectsHandler)
	authGroup.GET("/proyectos/:id", getProjectHandler)
	authGroup.DELETE("/proyectos/:id", deleteProjectHandler)
	authGroup.POST("/proyectos/:id/padron", uploadPadronHandler)
	authGroup.GET("/proyectos/:id/padron/estructura", describePadronHandler)
	authGroup.GET("/proyectos/:id/padron/muestra", samplePadronHandler)
	authGroup.POST("/plantillas", createTemplateHandler)
	authGroup.GET("/plantillas", listTemplatesHandler)
	authGroup.GET("/plantillas/:id", getTemplateHandler)
	authGroup.DELETE("/plantillas/:id", deleteTemplateHandler)
	authGroup.POST("/emisiones", runEmissionHandler)
	authGroup.GET("/emisiones/:sesion", listEmissionsHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	username := usernameVal.(string)
	c.JSON(http.StatusOK, gin.H{"username": username})
}

// getUserFromContext fetches the currently authenticated user using the username set by jwtAuthMiddleware
func getUserFromContext(c *gin.Context) (*models.User, bool) {
	unameVal, _ := c.Get("username")
	if unameVal == nil {
		return nil, false
	}
	uname := unameVal.(string)
	var user models.User
	if err := db.Where("username = ?", uname).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

func isAdmin(c *gin.Context) bool {
	role, _ := c.Get("role")
	return role == "administrator"
}

// loadProject resolves the :id param to a live (non-deleted) project.
func loadProject(c *gin.Context) (*models.Project, bool) {
	var p models.Project
	if err := db.Where("id = ? AND deleted = ?", c.Param("id"), false).First(&p).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return nil, false
	}
	return &p, true
}

// padronSchema converts the stored column declarations for pkg/padron.
func padronSchema(cols []models.PadronColumn) padron.Schema {
	s := make(padron.Schema, 0, len(cols))
	for _, c := range cols {
		s = append(s, padron.Column{Name: c.Name, Type: c.Type, Required: c.Required, Unique: c.Unique})
	}
	return s
}

// createProjectHandler provisions a project together with its padron table.
func createProjectHandler(c *gin.Context) {
	if !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "administrator only"})
		return
	}
	var req struct {
		Name        string                `json:"nombre" binding:"required"`
		Description string                `json:"descripcion"`
		Schema      []models.PadronColumn `json:"esquema" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	schema := padronSchema(req.Schema)
	if err := schema.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	projectUUID := uuid.NewString()
	mgr := padron.NewManager(db)
	table, err := mgr.CreateTable(projectUUID, schema)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	project := models.Project{
		UUID:         projectUUID,
		Name:         req.Name,
		Description:  req.Description,
		PadronTable:  table,
		PadronSchema: req.Schema,
	}
	if err := db.Create(&project).Error; err != nil {
		mgr.DropTable(table) // don't leave an orphan table behind
		if isUniqueConstraintError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "project already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": project.ID, "uuid": project.UUID, "tabla_padron": table})
}

func listProjectsHandler(c *gin.Context) {
	var projects []models.Project
	if err := db.Where("deleted = ?", false).Order("id desc").Limit(200).Find(&projects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, projects)
}

func getProjectHandler(c *gin.Context) {
	project, ok := loadProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

// deleteProjectHandler soft-deletes the project and drops its padron table.
// The emission history is append-only and survives the project.
func deleteProjectHandler(c *gin.Context) {
	if !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "administrator only"})
		return
	}
	project, ok := loadProject(c)
	if !ok {
		return
	}
	if err := db.Model(project).Update("deleted", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	dropped := padron.NewManager(db).DropTable(project.PadronTable)
	c.JSON(http.StatusOK, gin.H{"message": "project deleted", "tabla_eliminada": dropped})
}

// uploadPadronHandler loads a padron CSV into the project's table. The merge
// form flag decides whether existing accounts are refreshed or skipped.
func uploadPadronHandler(c *gin.Context) {
	project, ok := loadProject(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open failed"})
		return
	}
	defer f.Close()

	schema := padronSchema(project.PadronSchema)
	rows, err := padron.ParseCSV(f, schema)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	merge := c.PostForm("merge") == "true" || c.PostForm("merge") == "1"
	result, err := padron.NewManager(db).LoadRows(project.PadronTable, rows, merge)
	if err != nil {
		// counts reflect rows applied before the failure
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "resultado": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resultado": result, "total": len(rows)})
}

func describePadronHandler(c *gin.Context) {
	project, ok := loadProject(c)
	if !ok {
		return
	}
	cols, err := padron.NewManager(db).Describe(project.PadronTable)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tabla": project.PadronTable, "columnas": cols})
}

func samplePadronHandler(c *gin.Context) {
	project, ok := loadProject(c)
	if !ok {
		return
	}
	limit := 10
	if v := c.Query("limite"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	rows, err := padron.NewManager(db).Sample(project.PadronTable, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tabla": project.PadronTable, "registros": rows})
}

func createTemplateHandler(c *gin.Context) {
	var req struct {
		ProjectID   uint                    `json:"proyecto_id" binding:"required"`
		Name        string                  `json:"nombre" binding:"required"`
		Description string                  `json:"descripcion"`
		Fields      []models.TemplateField  `json:"campos" binding:"required"`
		PageSize    models.TemplatePageSize `json:"pagina"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var project models.Project
	if err := db.Where("id = ? AND deleted = ?", req.ProjectID, false).First(&project).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	template := models.Template{
		ProjectID:   project.ID,
		Name:        req.Name,
		Description: req.Description,
		Fields:      req.Fields,
		PageSize:    req.PageSize,
	}
	if err := db.Create(&template).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": template.ID})
}

func listTemplatesHandler(c *gin.Context) {
	q := db.Where("deleted = ?", false)
	if v := c.Query("proyecto_id"); v != "" {
		q = q.Where("project_id = ?", v)
	}
	var templates []models.Template
	if err := q.Order("id desc").Limit(200).Find(&templates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, templates)
}

func getTemplateHandler(c *gin.Context) {
	var t models.Template
	if err := db.Where("id = ? AND deleted = ?", c.Param("id"), false).First(&t).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func deleteTemplateHandler(c *gin.Context) {
	if !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "administrator only"})
		return
	}
	var t models.Template
	if err := db.Where("id = ? AND deleted = ?", c.Param("id"), false).First(&t).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}
	if err := db.Model(&t).Update("deleted", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "template deleted"})
}

// runEmissionHandler executes one emission run from a multipart CSV and
// returns the run summary. Structural input errors come back as 400; a run
// with per-record failures still returns 200 with the errors listed.
func runEmissionHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	projectID := c.PostForm("proyecto_id")
	templateID := c.PostForm("plantilla_id")
	docType := c.PostForm("documento")
	if projectID == "" || templateID == "" || docType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proyecto_id, plantilla_id and documento are required"})
		return
	}
	var project models.Project
	if err := db.Where("id = ? AND deleted = ?", projectID, false).First(&project).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return
	}
	var template models.Template
	if err := db.Where("id = ? AND deleted = ?", templateID, false).First(&template).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}
	date := time.Now()
	if v := c.PostForm("fecha"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fecha must be YYYY-MM-DD"})
			return
		}
		date = t
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open failed"})
		return
	}
	defer f.Close()

	engine, err := emission.New(db, emission.Params{
		Project:     &project,
		Template:    &template,
		UserID:      user.ID,
		DocType:     docType,
		Date:        date,
		OutputBase:  outputBaseDir(),
		MaxCSVBytes: maxCSVBytes(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summary, err := engine.Run(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "sesion_id": engine.SessionID()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// maxCSVBytes reads the EMISSION_MAX_CSV_MB override; zero keeps the default.
func maxCSVBytes() int64 {
	if v := os.Getenv("EMISSION_MAX_CSV_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n << 20
		}
	}
	return 0
}

// listEmissionsHandler returns the audit rows of one session.
func listEmissionsHandler(c *gin.Context) {
	var items []models.Emission
	if err := db.Where("session_id = ?", c.Param("sesion")).
		Order("print_order asc").Limit(1000).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := RegisterUser(req.Username, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	// Generate JWT token. Resolve role name from RoleID (we only store role_id now).
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// create refresh token
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID uint) (string, error) {
	// generate random 32-byte token (hex)
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	// hash for storage
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{UserID: userID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

// helper to find refresh token record by raw token string
func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	// load user
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	// create access token
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}
