package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"stokmanager/internal/config"
	"stokmanager/internal/events"
	"stokmanager/internal/infrastructure/memory"
	"stokmanager/internal/infrastructure/repository"
	"stokmanager/internal/metrics"
	"stokmanager/internal/store"
	"stokmanager/internal/usecase/attendance"
	"stokmanager/internal/usecase/device"
	"stokmanager/internal/usecase/inventory"
	"stokmanager/internal/usecase/presence"
	"stokmanager/internal/usecase/scan"
	"stokmanager/pkg/utils"
)

const (
	testCronSecret = "cron-secret"
	testJWTSecret  = "jwt-secret"
)

type RouterTestSuite struct {
	suite.Suite
	router *gin.Engine
	store  *memory.Store
	now    time.Time
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "test", MaxRequestBytes: 1 << 20},
		Presence: config.PresenceConfig{
			Interval:  30 * time.Second,
			Threshold: 30 * time.Second,
		},
		Attendance: config.AttendanceConfig{
			EventName:       "Seminar Teknologi 2025",
			SessionID:       "seminar-2025",
			Location:        "Auditorium Utama",
			Timezone:        "Asia/Jakarta",
			DuplicateWindow: 15 * time.Second,
			MinNIMLength:    8,
		},
		Auth: config.AuthConfig{JWTSecret: testJWTSecret, CronSecret: testCronSecret},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         86400,
		},
	}
}

func (suite *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	suite.store = memory.NewStore()
	suite.now = time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	clock := func() time.Time { return suite.now }
	cfg := testConfig()
	retry := utils.RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond}

	tracker := metrics.NewTracker()
	bus := events.NewBus()
	deviceRepo := repository.NewDeviceRepository(suite.store)
	itemRepo := repository.NewInventoryRepository(suite.store)

	devices := device.NewService(deviceRepo, bus, tracker, device.Options{Retry: retry, Timeout: time.Second, Now: clock})
	items := inventory.NewService(itemRepo, inventory.NewIndex(itemRepo, 0, clock), time.Second, clock)
	checkins := attendance.NewService(repository.NewAttendanceRepository(suite.store), cfg.Attendance, tracker, time.Second, clock)
	scans := scan.NewService(repository.NewScanRepository(suite.store), devices, items, checkins, tracker,
		scan.Options{Retry: retry, Timeout: time.Second, Now: clock})
	reconciler := presence.NewReconciler(deviceRepo, bus, tracker, presence.Options{
		Threshold: cfg.Presence.Threshold,
		Retry:     retry,
		Timeout:   time.Second,
		Now:       clock,
	})

	suite.router = SetupRoutes(cfg, Dependencies{
		Store:      suite.store,
		Bus:        bus,
		Metrics:    tracker,
		Devices:    devices,
		Scans:      scans,
		Inventory:  items,
		Attendance: checkins,
		Reconciler: reconciler,
	})
}

func (suite *RouterTestSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *RouterTestSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (suite *RouterTestSuite) adminHeaders(role string) map[string]string {
	token, err := utils.GenerateToken(&utils.Claims{UserID: "u-" + role, Role: role}, testJWTSecret)
	suite.Require().NoError(err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func (suite *RouterTestSuite) TestHeartbeatAndDeviceStatus() {
	require := suite.Require()

	w := suite.do(http.MethodPost, "/api/heartbeat", `{"deviceId":"ESP32-01","freeHeap":12345}`,
		map[string]string{"X-Forwarded-For": "10.0.0.9, 172.16.0.1"})
	require.Equal(http.StatusOK, w.Code)
	body := suite.decode(w)
	suite.Equal(true, body["success"])
	suite.Equal("ESP32-01", body["deviceId"])

	w = suite.do(http.MethodPost, "/api/heartbeat", `{"deviceId":"ESP32-02"}`, nil)
	require.Equal(http.StatusOK, w.Code)

	w = suite.do(http.MethodGet, "/api/devices-status", "", nil)
	require.Equal(http.StatusOK, w.Code)
	body = suite.decode(w)
	suite.EqualValues(2, body["total"])
	suite.EqualValues(2, body["online"])
	suite.EqualValues(0, body["offline"])

	devices := body["devices"].([]any)
	first := devices[0].(map[string]any)
	suite.Equal("ESP32-01", first["deviceId"])
	suite.Equal("10.0.0.9", first["ipAddress"])
	suite.EqualValues(12345, first["freeHeap"])

	second := devices[1].(map[string]any)
	suite.Equal("unknown", second["ipAddress"])
}

func (suite *RouterTestSuite) TestBarcodeScanStoreDownReturnsLocalSave() {
	suite.Require().NoError(suite.store.Close())

	w := suite.do(http.MethodPost, "/api/barcode-scan", `{"barcode":"ABC123","deviceId":"ESP32-01"}`, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	body := suite.decode(w)
	suite.Equal(false, body["success"])
	suite.Equal(true, body["localSave"])
	suite.Equal("ABC123", body["barcode"])
	suite.NotEmpty(body["error"])
}

func (suite *RouterTestSuite) TestBarcodeScanMatchesBarcodeVerbatim() {
	_, err := suite.store.Set(context.Background(), store.Inventory, "item-1", []byte(`{"barcode":"A<B>C1"}`))
	suite.Require().NoError(err)

	w := suite.do(http.MethodPost, "/api/barcode-scan", `{"barcode":"A<B>C1","deviceId":"ESP32-01"}`, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	body := suite.decode(w)
	suite.Equal(true, body["success"])
	suite.Equal(true, body["itemFound"])
	suite.Equal("item-1", body["itemId"])
}

func (suite *RouterTestSuite) TestHeartbeatWithLongDeviceIDIsAccepted() {
	w := suite.do(http.MethodPost, "/api/heartbeat", `{"deviceId":"`+strings.Repeat("E", 200)+`"}`, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal(strings.Repeat("E", device.MaxDeviceIDLength), suite.decode(w)["deviceId"])
}

func (suite *RouterTestSuite) TestCurrentPageIsAlwaysInventory() {
	w := suite.do(http.MethodGet, "/api/current-page", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	body := suite.decode(w)
	suite.Equal("inventory", body["page"])
	suite.Equal("inventory", body["mode"])
	suite.Equal(true, body["success"])
	suite.NotZero(body["timestamp"])

	w = suite.do(http.MethodPost, "/api/current-page", `{"mode":"attendance"}`, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	body = suite.decode(w)
	suite.Equal("inventory", body["mode"])
	suite.Equal("Page mode set to inventory", body["message"])
}

func (suite *RouterTestSuite) TestBarcodeScanWithoutBarcodeIsRejected() {
	w := suite.do(http.MethodPost, "/api/barcode-scan", `{"deviceId":"ESP32-01"}`, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *RouterTestSuite) TestPreflightReturnsOK() {
	w := suite.do(http.MethodOptions, "/api/barcode-scan", "", map[string]string{
		"Origin":                        "http://192.168.1.50",
		"Access-Control-Request-Method": "POST",
	})
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
	suite.Contains(w.Header().Get("Access-Control-Allow-Methods"), "POST")

	// Scanner firmware sends no Origin header.
	w = suite.do(http.MethodOptions, "/api/heartbeat", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
}

func (suite *RouterTestSuite) TestCheckDeviceStatusRequiresCronSecret() {
	require := suite.Require()

	w := suite.do(http.MethodPost, "/api/heartbeat", `{"deviceId":"ESP32-01"}`, nil)
	require.Equal(http.StatusOK, w.Code)

	w = suite.do(http.MethodPost, "/api/check-device-status", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodPost, "/api/check-device-status", "", map[string]string{"Authorization": "Bearer wrong"})
	suite.Equal(http.StatusUnauthorized, w.Code)

	suite.now = suite.now.Add(time.Minute)
	w = suite.do(http.MethodPost, "/api/check-device-status", "", map[string]string{"Authorization": "Bearer " + testCronSecret})
	require.Equal(http.StatusOK, w.Code)
	body := suite.decode(w)
	suite.Equal(true, body["success"])
	suite.EqualValues(1, body["updatedDevices"])
	suite.EqualValues(0, body["online"])
	suite.EqualValues(1, body["offline"])
}

func (suite *RouterTestSuite) TestAttendanceDuplicateAndExport() {
	require := suite.Require()

	w := suite.do(http.MethodPost, "/api/attendance", `{"nim":"10222001","nama":"John Doe","deviceId":"ESP32-01"}`, nil)
	require.Equal(http.StatusOK, w.Code)

	suite.now = suite.now.Add(3 * time.Second)
	w = suite.do(http.MethodPost, "/api/attendance", `{"nim":"10222001","deviceId":"ESP32-01"}`, nil)
	require.Equal(http.StatusConflict, w.Code)
	body := suite.decode(w)
	suite.Equal("Duplicate attendance detected", body["error"])
	suite.EqualValues(3, body["timeDiff"])

	w = suite.do(http.MethodPost, "/api/attendance", `{"nama":"x"}`, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/attendance", "", nil)
	require.Equal(http.StatusOK, w.Code)
	stats := suite.decode(w)["data"].(map[string]any)
	suite.EqualValues(1, stats["totalToday"])

	w = suite.do(http.MethodGet, "/api/attendance-export?format=csv&date=2025-03-10", "", nil)
	require.Equal(http.StatusOK, w.Code)
	suite.Equal("text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	suite.Equal(`attachment; filename="Absensi_Seminar_2025-03-10.csv"`, w.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimPrefix(w.Body.String(), "\uFEFF"), "\n")
	require.Len(lines, 2)
	suite.Equal("No,NIM,Nama,Waktu Absen,Device ID,Acara,Lokasi", lines[0])
	suite.Equal("1,10222001,John Doe,10/03/2025 09:00:00,ESP32-01,Seminar Teknologi 2025,Auditorium Utama", lines[1])

	w = suite.do(http.MethodGet, "/api/attendance-export?format=json&date=2025-03-10", "", nil)
	require.Equal(http.StatusOK, w.Code)
	suite.EqualValues(1, suite.decode(w)["count"])

	w = suite.do(http.MethodGet, "/api/attendance-export?format=xml", "", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *RouterTestSuite) TestInventoryWritesRequireAdminToken() {
	require := suite.Require()

	w := suite.do(http.MethodPost, "/api/inventory", `{"barcode":"ABC123","name":"Kabel LAN"}`, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodPost, "/api/inventory", `{"barcode":"ABC123"}`, suite.adminHeaders("user"))
	suite.Equal(http.StatusForbidden, w.Code)

	admin := suite.adminHeaders("admin")
	w = suite.do(http.MethodPost, "/api/inventory", `{"barcode":"ABC123","name":"Kabel LAN"}`, admin)
	require.Equal(http.StatusCreated, w.Code)
	itemID := suite.decode(w)["data"].(map[string]any)["id"].(string)

	w = suite.do(http.MethodPost, "/api/inventory", `{"barcode":"ABC123"}`, admin)
	suite.Equal(http.StatusConflict, w.Code)

	w = suite.do(http.MethodGet, "/api/inventory/lookup?barcode=ABC123", "", nil)
	require.Equal(http.StatusOK, w.Code)
	suite.Equal(itemID, suite.decode(w)["data"].(map[string]any)["id"])

	w = suite.do(http.MethodPost, "/api/barcode-scan", `{"barcode":"ABC123","deviceId":"ESP32-01"}`, nil)
	require.Equal(http.StatusOK, w.Code)
	scanBody := suite.decode(w)
	suite.Equal(true, scanBody["itemFound"])
	suite.Equal(itemID, scanBody["itemId"])

	w = suite.do(http.MethodDelete, "/api/inventory/"+itemID, "", admin)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.do(http.MethodGet, "/api/inventory/lookup?barcode=ABC123", "", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *RouterTestSuite) TestHealthReflectsStore() {
	w := suite.do(http.MethodGet, "/health", "", nil)
	suite.Equal(http.StatusOK, w.Code)

	w = suite.do(http.MethodGet, "/api/metrics", "", nil)
	suite.Equal(http.StatusOK, w.Code)

	suite.Require().NoError(suite.store.Close())
	w = suite.do(http.MethodGet, "/health", "", nil)
	suite.Equal(http.StatusServiceUnavailable, w.Code)
}
