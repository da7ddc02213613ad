package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader はリクエストIDを受け渡すヘッダ
const RequestIDHeader = "X-Request-ID"

// requestIDKey はgin.Contextに保存するキー
const requestIDKey = "request_id"

// 保持するログの上限。超えた分は古いものから捨てる
const maxLogEntries = 10000

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	RequestID    string        `json:"requestId"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// MonitoringService はAPIのモニタリング機能を提供します。
type MonitoringService struct {
	logs     []LogEntry
	mu       sync.RWMutex
	location *time.Location
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	// 集計の時間バケットはKSTで切る
	kst, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		kst = time.FixedZone("KST", 9*60*60)
	}
	return &MonitoringService{
		logs:     make([]LogEntry, 0),
		location: kst,
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if over := len(s.logs) - maxLogEntries; over > 0 {
		s.logs = append(s.logs[:0:0], s.logs[over:]...)
	}
}

// Len 保持しているログ件数
func (s *MonitoringService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}

// RequestIDMiddleware はリクエストIDを払い出し、レスポンスヘッダに付与します。
// クライアントがX-Request-IDを送ってきた場合はそれを使います。
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestID はgin.ContextからリクエストIDを取り出します。
func RequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return uuid.NewString()
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// 管理・モニタリング系は記録しない
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}

		s.LogRequest(LogEntry{
			Timestamp:    start,
			RequestID:    c.Writer.Header().Get(RequestIDHeader),
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		})
	}
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
	Endpoints        map[string]int           `json:"endpoints"`
	StatusCodes      []map[string]interface{} `json:"statusCodes"`
	AvgResponseTimes []map[string]interface{} `json:"avgResponseTimes"`
	RecentErrors     []LogEntry               `json:"recentErrors"`
	NoDataCount      int                      `json:"noDataCount"`
}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	return s.dashboardAt(time.Now(), periodHours)
}

func (s *MonitoringService) dashboardAt(at time.Time, periodHours int) DashboardData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if periodHours <= 0 {
		periodHours = 24
	}
	now := at.In(s.location)
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	filtered := make([]LogEntry, 0)
	for _, entry := range s.logs {
		if entry.Timestamp.After(since) {
			filtered = append(filtered, entry)
		}
	}

	// requestsOverTime: 過去から現在へ1時間刻み
	requestsOverTime := make([]map[string]interface{}, periodHours)
	hourly := make(map[string]int)
	for _, entry := range filtered {
		hourly[entry.Timestamp.In(s.location).Truncate(time.Hour).Format(time.RFC3339)]++
	}
	for i := 0; i < periodHours; i++ {
		target := now.Add(-time.Duration(periodHours-1-i) * time.Hour)
		key := target.Truncate(time.Hour).Format(time.RFC3339)
		requestsOverTime[i] = map[string]interface{}{"time": target.Format("15:00"), "requests": hourly[key]}
	}

	endpoints := make(map[string]int)
	statusCodes := map[string]int{
		"2xx Success":      0,
		"4xx Client Error": 0,
		"5xx Server Error": 0,
	}
	noData := 0
	responseTimeSum := make(map[string]time.Duration)
	for _, entry := range filtered {
		endpoints[entry.Path]++
		responseTimeSum[entry.Path] += entry.ResponseTime
		switch {
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			statusCodes["2xx Success"]++
		case entry.StatusCode >= 400 && entry.StatusCode < 500:
			statusCodes["4xx Client Error"]++
			if entry.StatusCode == 404 {
				noData++
			}
		case entry.StatusCode >= 500:
			statusCodes["5xx Server Error"]++
		}
	}

	statusSlice := make([]map[string]interface{}, 0, len(statusCodes))
	for _, name := range []string{"2xx Success", "4xx Client Error", "5xx Server Error"} {
		statusSlice = append(statusSlice, map[string]interface{}{"name": name, "value": statusCodes[name]})
	}

	paths := make([]string, 0, len(responseTimeSum))
	for p := range responseTimeSum {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	avgResponseTimes := make([]map[string]interface{}, 0, len(paths))
	for _, p := range paths {
		avg := responseTimeSum[p].Milliseconds() / int64(endpoints[p])
		avgResponseTimes = append(avgResponseTimes, map[string]interface{}{"endpoint": p, "responseTime": avg})
	}

	// 直近の5xxを新しい順に最大10件
	recentErrors := make([]LogEntry, 0)
	for i := len(filtered) - 1; i >= 0 && len(recentErrors) < 10; i-- {
		if filtered[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, filtered[i])
		}
	}

	return DashboardData{
		RequestsOverTime: requestsOverTime,
		Endpoints:        endpoints,
		StatusCodes:      statusSlice,
		AvgResponseTimes: avgResponseTimes,
		RecentErrors:     recentErrors,
		NoDataCount:      noData,
	}
}
