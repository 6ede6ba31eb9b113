package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/doi-comments-api/internal/ratelimit"
	"github.com/doi-comments-api/internal/repository"
	"github.com/doi-comments-api/internal/service"
	"github.com/doi-comments-api/internal/validation"
)

func seedStore(b *testing.B, dois, perDOI int) repository.CommentRepository {
	b.Helper()
	repo := repository.NewMemoryCommentRepo()
	ctx := context.Background()
	for i := 0; i < dois*perDOI; i++ {
		doi := "10.1000/paper." + strconv.Itoa(i%dois)
		if _, err := repo.Append(ctx, doi, "user", "comment "+strconv.Itoa(i)); err != nil {
			b.Fatalf("seed failed: %v", err)
		}
	}
	return repo
}

// BenchmarkAppend benchmarks single-DOI append throughput
func BenchmarkAppend(b *testing.B) {
	repo := repository.NewMemoryCommentRepo()
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		repo.Append(ctx, "10.1000/hot", "user", "comment")
	}
}

// BenchmarkAppendParallel benchmarks appends spread over many DOIs
func BenchmarkAppendParallel(b *testing.B) {
	repo := repository.NewMemoryCommentRepo()
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			repo.Append(ctx, "10.1000/p"+strconv.Itoa(i%64), "user", "comment")
			i++
		}
	})
}

// BenchmarkQueryMostRecent shows recent queries do not grow with store size
func BenchmarkQueryMostRecent(b *testing.B) {
	for _, size := range []int{1000, 100000} {
		b.Run(fmt.Sprintf("store=%d", size), func(b *testing.B) {
			repo := seedStore(b, 500, size/500)
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				repo.QueryMostRecent(ctx, 20)
			}
		})
	}
}

// BenchmarkFixedWindowAllow benchmarks admission across many identities
func BenchmarkFixedWindowAllow(b *testing.B) {
	limiter := ratelimit.NewFixedWindow(1<<30, time.Minute)
	defer limiter.Close()
	ctx := context.Background()

	identities := make([]string, 1024)
	for i := range identities {
		identities[i] = fmt.Sprintf("198.51.100.%d", i)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			limiter.Allow(ctx, identities[i%len(identities)])
			i++
		}
	})
}

// BenchmarkValidateDOI benchmarks DOI validation
func BenchmarkValidateDOI(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		validation.ValidateDOI("10.1038/nphys1170")
	}
}

// BenchmarkExportNDJSON benchmarks streaming a DOI with 1000 comments
func BenchmarkExportNDJSON(b *testing.B) {
	repo := seedStore(b, 1, 1000)
	services := service.NewServices(&repository.Repositories{Comment: repo}, nil, service.Options{})
	ctx := context.Background()
	var buf bytes.Buffer

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		buf.Reset()
		services.Comment.ExportComments(ctx, "10.1000/paper.0", service.FormatNDJSON, "bench", &buf)
	}

	b.ReportMetric(float64(1000*b.N)/b.Elapsed().Seconds(), "rows/sec")
}
