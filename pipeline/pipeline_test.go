package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/output"
	"github.com/airbusgeo/geocube-ndvi/pipeline"
	"github.com/airbusgeo/geocube-ndvi/service"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func tempDir() string {
	dir, err := os.MkdirTemp("", "pipeline")
	Expect(err).NotTo(HaveOccurred())
	tempDirs = append(tempDirs, dir)
	return dir
}

var _ = Describe("Pipeline", func() {
	var (
		workdir   string
		catalog   *MokeCatalog
		processor *MokeProcessor
		sink      *MokeSink
		states    map[string][]common.Status

		records []common.Record
		summary common.Summary
		err     error
	)

	var expectCleanWorkdir = func() {
		entries, err := os.ReadDir(workdir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	}

	BeforeEach(func() {
		var e error
		workdir, e = os.MkdirTemp("", "pipeline")
		Expect(e).NotTo(HaveOccurred())
		catalog = &MokeCatalog{fetchErrors: map[string]error{}}
		processor = &MokeProcessor{ndvi: map[string]float64{}, errors: map[string]error{}}
		sink = &MokeSink{}
		states = map[string][]common.Status{}
	})

	AfterEach(func() {
		os.RemoveAll(workdir)
	})

	JustBeforeEach(func() {
		p := pipeline.New(catalog, processor, sink, pipeline.WithWorkdir(workdir), pipeline.WithObserver(func(scene common.Scene, status common.Status) {
			states[scene.SourceID] = append(states[scene.SourceID], status)
		}))
		records, summary, err = p.Run(ctx, testArea())
	})

	Context("with four scenes, one of them without NIR band", func() {
		BeforeEach(func() {
			for i := 1; i <= 4; i++ {
				s := testScene(i)
				catalog.scenes = append(catalog.scenes, s)
				processor.ndvi[s.SourceID] = 0.1 * float64(i)
			}
			processor.errors[catalog.scenes[2].SourceID] = service.ErrMissingBand{Root: "root", Pattern: "B08_10m.jp2"}
		})

		It("should produce three records in the catalog order", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			for i, j := range []int{0, 1, 3} {
				Expect(records[i].Date).To(Equal(common.NewDate(catalog.scenes[j].Data.Date)))
				Expect(records[i].NDVI).To(BeNumerically("~", 0.1*float64(j+1), 1e-12))
				Expect(records[i].CloudCoverage).To(Equal(catalog.scenes[j].Data.CloudCover))
			}
		})
		It("should skip the scene without band", func() {
			Expect(summary.Matched).To(Equal(4))
			Expect(summary.Processed).To(Equal(3))
			Expect(summary.Skipped).To(Equal(1))
			Expect(summary.Failed).To(Equal(0))
			Expect(summary.Failures).To(HaveLen(1))
			Expect(summary.Failures[0].SceneID).To(Equal(catalog.scenes[2].SourceID))
			Expect(summary.Failures[0].Status).To(Equal(common.StatusSKIPPED))
		})
		It("should go through every state", func() {
			Expect(states[catalog.scenes[0].SourceID]).To(Equal([]common.Status{common.StatusPENDING, common.StatusFETCHED, common.StatusPROCESSED}))
			Expect(states[catalog.scenes[2].SourceID]).To(Equal([]common.Status{common.StatusPENDING, common.StatusFETCHED, common.StatusSKIPPED}))
		})
		It("should remove every scene root", func() {
			Expect(catalog.fetched).To(HaveLen(4))
			expectCleanWorkdir()
		})
		It("should write the records to the sink", func() {
			Expect(sink.calls).To(Equal(1))
			Expect(sink.records).To(Equal(records))
		})
	})

	Context("when the second of three scenes cannot be fetched", func() {
		BeforeEach(func() {
			for i := 1; i <= 3; i++ {
				s := testScene(i)
				catalog.scenes = append(catalog.scenes, s)
				processor.ndvi[s.SourceID] = 0.5
			}
			catalog.fetchErrors[catalog.scenes[1].SourceID] = fmt.Errorf("503 Service Unavailable")
		})

		It("should produce the records of the first and the third scenes", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].Date).To(Equal(common.NewDate(catalog.scenes[0].Data.Date)))
			Expect(records[1].Date).To(Equal(common.NewDate(catalog.scenes[2].Data.Date)))
		})
		It("should report the failure", func() {
			Expect(summary.Failed).To(Equal(1))
			Expect(summary.Failures).To(HaveLen(1))
			Expect(summary.Failures[0].SceneID).To(Equal(catalog.scenes[1].SourceID))
			Expect(summary.Failures[0].Status).To(Equal(common.StatusFAILED))
			Expect(summary.Failures[0].Reason).To(ContainSubstring("503"))
			Expect(states[catalog.scenes[1].SourceID]).To(Equal([]common.Status{common.StatusPENDING, common.StatusFAILED}))
		})
		It("should remove every scene root", func() {
			expectCleanWorkdir()
		})
	})

	Context("when scenes cannot be processed", func() {
		BeforeEach(func() {
			for i := 1; i <= 3; i++ {
				catalog.scenes = append(catalog.scenes, testScene(i))
			}
			processor.errors[catalog.scenes[0].SourceID] = service.ErrDecode{File: "B04_10m.jp2", Err: fmt.Errorf("corrupted")}
			processor.errors[catalog.scenes[1].SourceID] = service.ErrEmptyResult{Pixels: 100}
			processor.errors[catalog.scenes[2].SourceID] = fmt.Errorf("NDVI: shapes differ")
		})

		It("should fail the scenes and continue", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
			Expect(summary.Matched).To(Equal(3))
			Expect(summary.Failed).To(Equal(3))
			Expect(sink.calls).To(Equal(1))
			expectCleanWorkdir()
		})
	})

	Context("when no scene matches the query", func() {
		It("should produce an empty result", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(records).NotTo(BeNil())
			Expect(records).To(BeEmpty())
			Expect(summary.Matched).To(Equal(0))
			Expect(sink.calls).To(Equal(1))
		})
	})

	Context("when the query fails", func() {
		BeforeEach(func() {
			catalog.scenes = []common.Scene{testScene(1)}
			catalog.queryError = fmt.Errorf("catalogue unavailable")
		})

		It("should abort the run", func() {
			Expect(service.IsQuery(err)).To(BeTrue())
			Expect(records).To(BeNil())
			Expect(catalog.fetched).To(BeEmpty())
			Expect(sink.calls).To(Equal(0))
		})
	})
})

var _ = Describe("Pipeline with a CSV sink", func() {
	It("should write a header-only file when no scene matches", func() {
		path := filepath.Join(tempDir(), "hooghly_ndvi_sentinel.csv")
		p := pipeline.New(&MokeCatalog{}, &MokeProcessor{}, output.CSVSink{Path: path}, pipeline.WithWorkdir(tempDir()))
		_, _, err := p.Run(ctx, testArea())
		Expect(err).NotTo(HaveOccurred())
		b, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.TrimSpace(string(b))).To(Equal("date,ndvi,cloud_coverage"))
	})
})

var _ = Describe("Pipeline with a canceled context", func() {
	It("should stop before the first scene", func() {
		catalog := &MokeCatalog{scenes: []common.Scene{testScene(1), testScene(2)}}
		sink := &MokeSink{}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := pipeline.New(catalog, &MokeProcessor{}, sink, pipeline.WithWorkdir(tempDir())).Run(cctx, testArea())
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(catalog.fetched).To(BeEmpty())
		Expect(sink.calls).To(Equal(0))
	})
})

var _ = Describe("NDVIHandler", func() {
	var (
		catalog *MokeCatalog
		server  *httptest.Server
	)

	BeforeEach(func() {
		catalog = &MokeCatalog{scenes: []common.Scene{testScene(1), testScene(2)}}
		processor := &MokeProcessor{
			ndvi:   map[string]float64{catalog.scenes[0].SourceID: 0.25},
			errors: map[string]error{catalog.scenes[1].SourceID: service.ErrMissingBand{Root: "root", Pattern: "B08_10m.jp2"}},
		}
		p := pipeline.New(catalog, processor, nil, pipeline.WithWorkdir(tempDir()))
		server = httptest.NewServer(p.NewHandler(testArea()))
	})

	AfterEach(func() {
		server.Close()
	})

	It("should return the time series as CSV", func() {
		resp, err := http.Get(server.URL + "/ndvi?lon=88.39&lat=22.90&start=2024-01-01&end=2024-03-01&cloud=30")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(200))
		lines := strings.Split(strings.TrimSpace(string(body)), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(Equal("date,ndvi,cloud_coverage"))
		Expect(lines[1]).To(HavePrefix("2024-01-05,0.25,"))
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/csv"))
		Expect(resp.Header.Get("X-Ndvi-Matched")).To(Equal("2"))
		Expect(resp.Header.Get("X-Ndvi-Processed")).To(Equal("1"))
		Expect(resp.Header.Get("X-Ndvi-Skipped")).To(Equal("1"))
	})

	It("should reject bad parameters", func() {
		for _, query := range []string{"lon=abc&lat=22.9", "start=2024-03-01&end=2024-01-01", "cloud=twenty"} {
			resp, err := http.Get(server.URL + "/ndvi?" + query)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(400), query)
		}
	})

	It("should return 502 when the query fails", func() {
		catalog.queryError = fmt.Errorf("catalogue unavailable")
		resp, err := http.Get(server.URL + "/ndvi")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(502))
	})

	It("should serve parallel requests one run at a time", func() {
		var wg sync.WaitGroup
		codes := make([]int, 8)
		for i := range codes {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				resp, err := http.Get(server.URL + "/ndvi?lon=88.39&lat=22.90")
				Expect(err).NotTo(HaveOccurred())
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				codes[i] = resp.StatusCode
			}(i)
		}
		wg.Wait()
		for _, code := range codes {
			Expect(code).To(Equal(200))
		}
		Expect(catalog.maxRunning).To(Equal(int32(1)))
		Expect(catalog.fetched).To(HaveLen(len(codes) * len(catalog.scenes)))
	})
})
