package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nazmul199512/ecommerce-order-management-system/internal/domain"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/errs"
	"github.com/nazmul199512/ecommerce-order-management-system/internal/event"
)

var testVendor = &domain.User{ID: 7, Username: "shop", Role: domain.UserRoleVendor}

type productFixture struct {
	productRepo *mockProductRepository
	importRepo  *mockImportRepository
	invRepo     *mockInventoryRepository
	pub         *mockPublisher
	svc         ProductService
}

func newProductFixture() *productFixture {
	productRepo := newMockProductRepository()
	importRepo := newMockImportRepository()
	invRepo := newMockInventoryRepository()
	pub := &mockPublisher{}
	inventory := NewInventoryService(fakeTxRunner{}, invRepo, pub, zap.NewNop(), 100)
	return &productFixture{
		productRepo: productRepo,
		importRepo:  importRepo,
		invRepo:     invRepo,
		pub:         pub,
		svc:         NewProductService(fakeTxRunner{}, productRepo, importRepo, invRepo, inventory, zap.NewNop()),
	}
}

func TestProductServiceCreate(t *testing.T) {
	f := newProductFixture()

	product, err := f.svc.Create(testVendor.ID, &domain.CreateProductRequest{
		Name:      "Widget",
		SKU:       "W-1",
		BasePrice: 9.99,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if product.VendorID != testVendor.ID || !product.IsActive {
		t.Errorf("product = {vendor: %d, active: %v}, want vendor %d active", product.VendorID, product.IsActive, testVendor.ID)
	}

	if _, err := f.svc.Create(testVendor.ID, &domain.CreateProductRequest{
		Name:      "Widget copy",
		SKU:       "W-1",
		BasePrice: 5,
	}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("duplicate sku: error = %v, want validation error", err)
	}
}

func TestProductServiceCreateValidation(t *testing.T) {
	f := newProductFixture()

	tests := []struct {
		name string
		req  *domain.CreateProductRequest
	}{
		{"empty name", &domain.CreateProductRequest{Name: " ", SKU: "S-1", BasePrice: 1}},
		{"empty sku", &domain.CreateProductRequest{Name: "Widget", SKU: "", BasePrice: 1}},
		{"zero price", &domain.CreateProductRequest{Name: "Widget", SKU: "S-1", BasePrice: 0}},
		{"negative price", &domain.CreateProductRequest{Name: "Widget", SKU: "S-1", BasePrice: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(testVendor.ID, tt.req); !errors.Is(err, errs.ErrValidation) {
				t.Errorf("Create() error = %v, want validation error", err)
			}
		})
	}
}

func TestProductServiceGet(t *testing.T) {
	f := newProductFixture()
	product := f.productRepo.seed(&domain.Product{VendorID: 7, Name: "Widget", SKU: "W-1", BasePrice: 9.99, IsActive: true})
	f.invRepo.seed(&domain.Inventory{ProductID: product.ID, Quantity: 30, LowStockThreshold: 10})

	got, err := f.svc.Get(product.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Inventory == nil || got.Inventory.Quantity != 30 {
		t.Errorf("inventory = %+v, want quantity 30", got.Inventory)
	}

	if _, err := f.svc.Get(999); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get(999) error = %v, want not found", err)
	}
}

func TestProductServiceUpdate(t *testing.T) {
	f := newProductFixture()
	product := f.productRepo.seed(&domain.Product{VendorID: testVendor.ID, Name: "Widget", SKU: "W-1", BasePrice: 9.99, IsActive: true})

	name := "Widget v2"
	price := 12.50
	active := false
	updated, err := f.svc.Update(product.ID, testVendor, &domain.UpdateProductRequest{
		Name:      &name,
		BasePrice: &price,
		IsActive:  &active,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Widget v2" || updated.BasePrice != 12.50 || updated.IsActive {
		t.Errorf("updated = {name: %q, price: %v, active: %v}", updated.Name, updated.BasePrice, updated.IsActive)
	}
	// 未出现在请求里的字段保持原值
	if updated.SKU != "W-1" {
		t.Errorf("sku = %q, want unchanged", updated.SKU)
	}

	bad := -1.0
	if _, err := f.svc.Update(product.ID, testVendor, &domain.UpdateProductRequest{BasePrice: &bad}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("negative price: error = %v, want validation error", err)
	}
}

// 供应商只能管理自己的商品，越权访问表现为资源不存在
func TestProductServiceOwnership(t *testing.T) {
	f := newProductFixture()
	product := f.productRepo.seed(&domain.Product{VendorID: testVendor.ID, Name: "Widget", SKU: "W-1", BasePrice: 9.99, IsActive: true})

	stranger := &domain.User{ID: 99, Username: "other", Role: domain.UserRoleVendor}
	name := "hijacked"

	if _, err := f.svc.Update(product.ID, stranger, &domain.UpdateProductRequest{Name: &name}); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("stranger update: error = %v, want not found", err)
	}
	if err := f.svc.Delete(product.ID, stranger); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("stranger delete: error = %v, want not found", err)
	}

	if _, err := f.svc.Update(product.ID, testAdmin, &domain.UpdateProductRequest{Name: &name}); err != nil {
		t.Errorf("admin update: error = %v", err)
	}
}

func TestProductServiceDelete(t *testing.T) {
	f := newProductFixture()
	product := f.productRepo.seed(&domain.Product{VendorID: testVendor.ID, Name: "Widget", SKU: "W-1", BasePrice: 9.99, IsActive: true})

	if err := f.svc.Delete(product.ID, testVendor); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// 软删除后对外不可见
	if _, err := f.svc.Get(product.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get() after delete: error = %v, want not found", err)
	}
	if err := f.svc.Delete(999, testAdmin); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Delete(999) error = %v, want not found", err)
	}
}

func TestProductServiceCreateVariant(t *testing.T) {
	f := newProductFixture()
	product := f.productRepo.seed(&domain.Product{VendorID: testVendor.ID, Name: "Widget", SKU: "W-1", BasePrice: 9.99, IsActive: true})

	variant, err := f.svc.CreateVariant(product.ID, testVendor, &domain.ProductVariant{
		Name:  "Red",
		SKU:   "W-1-R",
		Price: 10.99,
	})
	if err != nil {
		t.Fatalf("CreateVariant() error = %v", err)
	}
	if variant.ProductID != product.ID {
		t.Errorf("variant product = %d, want %d", variant.ProductID, product.ID)
	}

	if _, err := f.svc.CreateVariant(product.ID, testVendor, &domain.ProductVariant{Name: "", SKU: "W-1-X", Price: 1}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("empty name: error = %v, want validation error", err)
	}
	if _, err := f.svc.CreateVariant(product.ID, testVendor, &domain.ProductVariant{Name: "Blue", SKU: "W-1-B", Price: 0}); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("zero price: error = %v, want validation error", err)
	}

	stranger := &domain.User{ID: 99, Username: "other", Role: domain.UserRoleVendor}
	if _, err := f.svc.CreateVariant(product.ID, stranger, &domain.ProductVariant{Name: "Green", SKU: "W-1-G", Price: 1}); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("stranger variant: error = %v, want not found", err)
	}

	variants, err := f.svc.ListVariants(product.ID)
	if err != nil {
		t.Fatalf("ListVariants() error = %v", err)
	}
	if len(variants) != 1 {
		t.Errorf("variant count = %d, want 1", len(variants))
	}
}

func TestParseImportRow(t *testing.T) {
	header := map[string]int{
		"name": 0, "sku": 1, "description": 2,
		"base_price": 3, "initial_quantity": 4, "low_stock_threshold": 5,
	}

	tests := []struct {
		name     string
		record   []string
		wantErrs int
	}{
		{"valid row", []string{"Widget", "W-1", "A widget", "9.99", "50", "5"}, 0},
		{"blank threshold uses default", []string{"Widget", "W-1", "", "9.99", "50", ""}, 0},
		{"missing name", []string{"", "W-1", "", "9.99", "50", "5"}, 1},
		{"name too long", []string{strings.Repeat("x", 256), "W-1", "", "9.99", "50", "5"}, 1},
		{"missing sku", []string{"Widget", "", "", "9.99", "50", "5"}, 1},
		{"bad price", []string{"Widget", "W-1", "", "cheap", "50", "5"}, 1},
		{"negative price", []string{"Widget", "W-1", "", "-1", "50", "5"}, 1},
		{"bad quantity", []string{"Widget", "W-1", "", "9.99", "many", "5"}, 1},
		{"negative quantity", []string{"Widget", "W-1", "", "9.99", "-1", "5"}, 1},
		{"bad threshold", []string{"Widget", "W-1", "", "9.99", "50", "-3"}, 1},
		{"everything wrong", []string{"", "", "", "x", "y", "z"}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, rowErrs := parseImportRow(header, tt.record)
			if len(rowErrs) != tt.wantErrs {
				t.Fatalf("errors = %v, want %d", rowErrs, tt.wantErrs)
			}
			if tt.wantErrs == 0 && row.basePrice != 9.99 {
				t.Errorf("base price = %v, want 9.99", row.basePrice)
			}
		})
	}

	row, rowErrs := parseImportRow(header, []string{"Widget", "W-1", "", "9.99", "50", ""})
	if len(rowErrs) != 0 || row.lowStockThreshold != defaultLowStockThreshold {
		t.Errorf("threshold = %d, want default %d", row.lowStockThreshold, defaultLowStockThreshold)
	}

	// 短行按空列处理，必填字段计入错误
	if _, rowErrs := parseImportRow(header, []string{"Widget", "W-1"}); len(rowErrs) != 2 {
		t.Errorf("short record errors = %v, want price and quantity errors", rowErrs)
	}
}

func TestProductServiceRunImport(t *testing.T) {
	f := newProductFixture()

	csvContent := strings.Join([]string{
		"name,sku,description,base_price,initial_quantity,low_stock_threshold",
		"Widget,W-1,A widget,9.99,50,5",
		",X-1,,5.00,10,",
		"Gadget,G-1,,not-a-price,10,",
		"Widget again,W-1,,5.00,10,",
		"Thin stock,T-1,,4.50,2,",
	}, "\n")

	path := filepath.Join(t.TempDir(), "import.csv")
	if err := os.WriteFile(path, []byte(csvContent), 0o600); err != nil {
		t.Fatal(err)
	}

	imp, err := f.svc.CreateImport(testVendor.ID, path)
	if err != nil {
		t.Fatalf("CreateImport() error = %v", err)
	}
	if err := f.svc.RunImport(context.Background(), imp.ID); err != nil {
		t.Fatalf("RunImport() error = %v", err)
	}

	done, err := f.svc.GetImport(imp.ID)
	if err != nil {
		t.Fatalf("GetImport() error = %v", err)
	}
	if done.Status != domain.ImportStatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
	if done.Imported != 2 || done.Failed != 3 {
		t.Errorf("counts = {imported: %d, failed: %d}, want {2, 3}", done.Imported, done.Failed)
	}
	if len(done.Errors) != 3 {
		t.Fatalf("row errors = %d, want 3", len(done.Errors))
	}
	// 行号从文件第一行起算，表头是第1行
	if done.Errors[0].Row != 3 || done.Errors[1].Row != 4 || done.Errors[2].Row != 5 {
		t.Errorf("error rows = [%d %d %d], want [3 4 5]", done.Errors[0].Row, done.Errors[1].Row, done.Errors[2].Row)
	}

	widget, err := f.productRepo.GetBySKU("W-1")
	if err != nil || widget == nil {
		t.Fatalf("GetBySKU(W-1) = %v, %v", widget, err)
	}
	if widget.VendorID != testVendor.ID || !widget.IsActive {
		t.Errorf("imported product = {vendor: %d, active: %v}", widget.VendorID, widget.IsActive)
	}
	inv := f.invRepo.stock(widget.ID, nil)
	if inv == nil || inv.Quantity != 50 || inv.LowStockThreshold != 5 {
		t.Errorf("inventory = %+v, want quantity 50 threshold 5", inv)
	}

	// T-1 初始量 2，默认阈值 10，导入即触发一次低库存事件
	thin, _ := f.productRepo.GetBySKU("T-1")
	if thin == nil {
		t.Fatal("product T-1 not imported")
	}
	if got := f.invRepo.stock(thin.ID, nil).LowStockThreshold; got != defaultLowStockThreshold {
		t.Errorf("T-1 threshold = %d, want default %d", got, defaultLowStockThreshold)
	}
	kinds := f.pub.kinds()
	if len(kinds) != 1 || kinds[0] != event.KindLowStockDetected {
		t.Errorf("events = %v, want one low stock alert", kinds)
	}
	checkLogInvariant(t, f.invRepo.logs)
}

func TestProductServiceRunImportMissing(t *testing.T) {
	f := newProductFixture()
	if err := f.svc.RunImport(context.Background(), 42); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("RunImport(42) error = %v, want not found", err)
	}
}

// 仓储查询失败中断批次时，批次必须收尾为failed而不是停在processing
func TestProductServiceRunImportRepoFailure(t *testing.T) {
	f := newProductFixture()

	csvContent := strings.Join([]string{
		"name,sku,description,base_price,initial_quantity,low_stock_threshold",
		"Widget,W-1,,9.99,50,5",
	}, "\n")
	path := filepath.Join(t.TempDir(), "import.csv")
	if err := os.WriteFile(path, []byte(csvContent), 0o600); err != nil {
		t.Fatal(err)
	}

	imp, err := f.svc.CreateImport(testVendor.ID, path)
	if err != nil {
		t.Fatalf("CreateImport() error = %v", err)
	}

	f.productRepo.skuErr = errors.New("connection reset")
	if err := f.svc.RunImport(context.Background(), imp.ID); err == nil {
		t.Fatal("RunImport() error = nil, want repo failure")
	}

	done, _ := f.svc.GetImport(imp.ID)
	if done.Status != domain.ImportStatusFailed {
		t.Errorf("status = %s, want failed", done.Status)
	}
}

func TestProductServiceRunImportUnreadableFile(t *testing.T) {
	f := newProductFixture()
	imp, err := f.svc.CreateImport(testVendor.ID, filepath.Join(t.TempDir(), "missing.csv"))
	if err != nil {
		t.Fatalf("CreateImport() error = %v", err)
	}

	if err := f.svc.RunImport(context.Background(), imp.ID); err == nil {
		t.Fatal("RunImport() error = nil, want open failure")
	}
	done, _ := f.svc.GetImport(imp.ID)
	if done.Status != domain.ImportStatusFailed {
		t.Errorf("status = %s, want failed", done.Status)
	}
}
