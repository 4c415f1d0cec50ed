package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"barberops-backend/ledger"
	"barberops-backend/models"
	"barberops-backend/utils"
)

// CatalogHandler serves the branch, barber, service and product catalog
// the POS and the customer app browse.
type CatalogHandler struct {
	DB *gorm.DB
}

// --- Branches ---

func (h *CatalogHandler) ListBranches(c *gin.Context) {
	query := h.DB.Model(&models.Branch{})
	if c.Query("include_inactive") != "true" {
		query = query.Where("is_active = ?", true)
	}

	var branches []models.Branch
	if err := query.Order("name ASC").Find(&branches).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch branches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"branches": branches})
}

func (h *CatalogHandler) GetBranch(c *gin.Context) {
	var branch models.Branch
	if err := h.DB.First(&branch, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Branch not found"})
		return
	}
	c.JSON(http.StatusOK, branch)
}

func (h *CatalogHandler) CreateBranch(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Address string `json:"address"`
		Phone   string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	branch := models.Branch{Name: req.Name, Address: req.Address, Phone: req.Phone, IsActive: true}
	if err := h.DB.Create(&branch).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create branch"})
		return
	}
	c.JSON(http.StatusCreated, branch)
}

func (h *CatalogHandler) UpdateBranch(c *gin.Context) {
	var branch models.Branch
	if err := h.DB.First(&branch, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Branch not found"})
		return
	}

	var req struct {
		Name     *string `json:"name"`
		Address  *string `json:"address"`
		Phone    *string `json:"phone"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&branch).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update branch"})
			return
		}
	}
	h.DB.First(&branch, "id = ?", branch.ID)
	c.JSON(http.StatusOK, branch)
}

// --- Barbers ---

func (h *CatalogHandler) ListBarbers(c *gin.Context) {
	query := h.DB.Model(&models.Barber{}).Where("is_active = ?", true)
	if branchID := c.Query("branch_id"); branchID != "" {
		query = query.Where("branch_id = ?", branchID)
	}

	var barbers []models.Barber
	if err := query.Order("name ASC").Find(&barbers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch barbers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"barbers": barbers})
}

func (h *CatalogHandler) CreateBarber(c *gin.Context) {
	var req struct {
		Name      string     `json:"name" binding:"required"`
		BranchID  uuid.UUID  `json:"branch_id" binding:"required"`
		UserID    *uuid.UUID `json:"user_id"`
		Specialty string     `json:"specialty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	barber := models.Barber{
		Name:      req.Name,
		BranchID:  req.BranchID,
		UserID:    req.UserID,
		Specialty: req.Specialty,
		IsActive:  true,
	}
	if err := h.DB.Create(&barber).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create barber"})
		return
	}
	c.JSON(http.StatusCreated, barber)
}

func (h *CatalogHandler) UpdateBarber(c *gin.Context) {
	var barber models.Barber
	if err := h.DB.First(&barber, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Barber not found"})
		return
	}

	var req struct {
		Name      *string    `json:"name"`
		BranchID  *uuid.UUID `json:"branch_id"`
		Specialty *string    `json:"specialty"`
		IsActive  *bool      `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.BranchID != nil {
		updates["branch_id"] = *req.BranchID
	}
	if req.Specialty != nil {
		updates["specialty"] = *req.Specialty
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&barber).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update barber"})
			return
		}
	}
	h.DB.First(&barber, "id = ?", barber.ID)
	c.JSON(http.StatusOK, barber)
}

// --- Services ---

func (h *CatalogHandler) ListServices(c *gin.Context) {
	query := h.DB.Model(&models.Service{}).Where("is_active = ?", true)
	if branchID := c.Query("branch_id"); branchID != "" {
		query = query.Where("branch_id = ? OR branch_id IS NULL", branchID)
	}

	var services []models.Service
	if err := query.Order("name ASC").Find(&services).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch services"})
		return
	}

	result := make([]gin.H, 0, len(services))
	for _, s := range services {
		result = append(result, serviceResponse(&s))
	}
	c.JSON(http.StatusOK, gin.H{"services": result})
}

func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req struct {
		Name            string     `json:"name" binding:"required"`
		Description     string     `json:"description"`
		Price           float64    `json:"price" binding:"required"`
		DurationMinutes int        `json:"duration_minutes"`
		BranchID        *uuid.UUID `json:"branch_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	if req.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must be positive"})
		return
	}

	service := models.Service{
		Name:            req.Name,
		Description:     req.Description,
		Price:           ledger.ParseAmount(req.Price),
		DurationMinutes: req.DurationMinutes,
		BranchID:        req.BranchID,
		IsActive:        true,
	}
	if err := h.DB.Create(&service).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create service"})
		return
	}
	c.JSON(http.StatusCreated, serviceResponse(&service))
}

func (h *CatalogHandler) UpdateService(c *gin.Context) {
	var service models.Service
	if err := h.DB.First(&service, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
		return
	}

	var req struct {
		Name            *string  `json:"name"`
		Description     *string  `json:"description"`
		Price           *float64 `json:"price"`
		DurationMinutes *int     `json:"duration_minutes"`
		IsActive        *bool    `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Price must be positive"})
			return
		}
		updates["price"] = ledger.ParseAmount(*req.Price)
	}
	if req.DurationMinutes != nil {
		updates["duration_minutes"] = *req.DurationMinutes
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&service).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update service"})
			return
		}
	}
	h.DB.First(&service, "id = ?", service.ID)
	c.JSON(http.StatusOK, serviceResponse(&service))
}

// --- Products ---

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := h.DB.Model(&models.Product{}).Where("is_active = ?", true)
	if branchID := c.Query("branch_id"); branchID != "" {
		query = query.Where("branch_id = ? OR branch_id IS NULL", branchID)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?) OR LOWER(brand) LIKE LOWER(?)", "%"+search+"%", "%"+search+"%")
	}
	if c.Query("in_stock") == "true" {
		query = query.Where("stock > 0")
	}

	var total int64
	query.Count(&total)

	var products []models.Product
	if err := query.Order("name ASC").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	result := make([]gin.H, 0, len(products))
	for _, p := range products {
		result = append(result, productResponse(&p))
	}
	c.JSON(http.StatusOK, gin.H{
		"products": result,
		"total":    total,
		"page":     page,
		"limit":    limit,
		"pages":    int(math.Ceil(float64(total) / float64(limit))),
	})
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	var product models.Product
	if err := h.DB.First(&product, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, productResponse(&product))
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req struct {
		Name        string     `json:"name" binding:"required"`
		Description string     `json:"description"`
		Price       float64    `json:"price" binding:"required"`
		Stock       int        `json:"stock"`
		Brand       string     `json:"brand"`
		BranchID    *uuid.UUID `json:"branch_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	if req.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must be positive"})
		return
	}
	if req.Stock < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stock cannot be negative"})
		return
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       ledger.ParseAmount(req.Price),
		Stock:       req.Stock,
		Brand:       req.Brand,
		BranchID:    req.BranchID,
		IsActive:    true,
	}
	if err := h.DB.Create(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}
	c.JSON(http.StatusCreated, productResponse(&product))
}

func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	var product models.Product
	if err := h.DB.First(&product, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	var req struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		Stock       *int     `json:"stock"`
		Brand       *string  `json:"brand"`
		IsActive    *bool    `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Price must be positive"})
			return
		}
		updates["price"] = ledger.ParseAmount(*req.Price)
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Stock cannot be negative"})
			return
		}
		updates["stock"] = *req.Stock
	}
	if req.Brand != nil {
		updates["brand"] = *req.Brand
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&product).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
			return
		}
	}
	h.DB.First(&product, "id = ?", product.ID)
	c.JSON(http.StatusOK, productResponse(&product))
}

func serviceResponse(s *models.Service) gin.H {
	return gin.H{
		"id":               s.ID,
		"branch_id":        s.BranchID,
		"name":             s.Name,
		"description":      s.Description,
		"price":            ledger.ToFloat(s.Price),
		"duration_minutes": s.DurationMinutes,
		"is_active":        s.IsActive,
	}
}

func productResponse(p *models.Product) gin.H {
	return gin.H{
		"id":              p.ID,
		"branch_id":       p.BranchID,
		"name":            p.Name,
		"description":     p.Description,
		"price":           ledger.ToFloat(p.Price),
		"stock":           p.Stock,
		"sold_this_month": p.SoldThisMonth,
		"brand":           p.Brand,
		"is_active":       p.IsActive,
	}
}
