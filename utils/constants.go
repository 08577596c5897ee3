package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (7 days)
	AccessTokenTTL = 7 * 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds (604800 seconds = 7 days)
	AccessTokenTTLSeconds = 604800
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Reference and tag constants
const (
	// FallbackTag is assigned to references that carry no tags after ingestion
	FallbackTag = "未分類"

	// ManualSource marks references added by hand rather than scraped
	ManualSource = "手動追加"

	// DefaultReferenceTitle is used when a candidate arrives without a title
	DefaultReferenceTitle = "新しいリファレンス"

	// IngestBatchSize is the number of candidates analyzed concurrently per group
	IngestBatchSize = 5

	// IngestBatchPause is the delay between analysis groups
	IngestBatchPause = 1 * time.Second
)

// Pagination constants
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// SeedTagNames are the tag names created at startup so the ledger is never
// empty. Counts start at zero; ListAll orders by count so these surface
// only once used.
var SeedTagNames = []string{
	"ミニマル",
	"グリッドレイアウト",
	"採用LP",
	"3D要素",
	"ダークモード",
	"E-commerce",
	"ポートフォリオ",
	"コーポレート",
	"SaaS",
	"モバイル",
	"クリエイティブ",
	"ファッション",
	"テック",
	"スタートアップ",
}
