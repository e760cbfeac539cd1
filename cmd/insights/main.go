package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"earnings-insights-go/internal/classify"
	"earnings-insights-go/internal/config"
	"earnings-insights-go/internal/logger"
	"earnings-insights-go/internal/pipeline"
	"earnings-insights-go/internal/result"
	"earnings-insights-go/internal/segment"
	"earnings-insights-go/internal/storage"
)

type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress() *progress {
	return &progress{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Starting..."),
			progressbar.OptionSetWidth(50),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionEnableColorCodes(true),
		),
	}
}

func (p *progress) update(status string) {
	p.bar.Describe(fmt.Sprintf("[cyan]%s[reset]", status))
	_ = p.bar.Add(1)
}

func (p *progress) clear() { _ = p.bar.Clear() }

func main() {
	_ = godotenv.Load()

	input := flag.String("input", "", "path to a local transcript .txt file")
	useStdin := flag.Bool("stdin", false, "read transcript text from STDIN")
	inputFile := flag.String("input-file", "", "transcript path inside the input bucket")
	inputBucket := flag.String("input-bucket", "", "input bucket (default from TRANSCRIPTS_BUCKET)")
	kindFlag := flag.String("kind", "relevance", "analysis kind: relevance or specificity")
	model := flag.String("model", "", "classifier model id override")
	output := flag.String("output", "", "local output CSV path (default <kind>_over_time.csv)")
	xlsxPath := flag.String("xlsx", "", "optional XLSX workbook output path")
	outputFile := flag.String("output-file", "", "destination path in the output bucket (auto-named when empty)")
	outputBucket := flag.String("output-bucket", "", "output bucket (default from RESULTS_BUCKET)")
	batchSize := flag.Int("batch-size", classify.DefaultBatchSize, "classifier batch size")
	maxLength := flag.Int("max-length", classify.DefaultMaxLength, "max tokens per sentence")
	window := flag.Int("window", pipeline.DefaultWindow, "moving average window (0/1 disables)")
	trackMetadata := flag.Bool("track-metadata", false, "insert a processing record into the metadata table")
	metadataTable := flag.String("metadata-table", "", "metadata table (default from METADATA_TABLE)")
	flag.Parse()

	log := logger.Component("insights")
	cfg := config.Load()

	kind, err := result.ParseKind(*kindFlag)
	if err != nil {
		log.WithError(err).Fatal("bad -kind")
	}
	modelID := *model
	if modelID == "" {
		if kind == result.KindSpecificity {
			modelID = cfg.SpecificityModel
		} else {
			modelID = cfg.RelevanceModel
		}
	}
	if *inputBucket == "" {
		*inputBucket = cfg.TranscriptsBucket
	}
	if *outputBucket == "" {
		*outputBucket = cfg.ResultsBucket
	}
	if *metadataTable == "" {
		*metadataTable = cfg.MetadataTable
	}
	if *output == "" {
		*output = fmt.Sprintf("%s_over_time.csv", kind)
	}

	var store *storage.Client
	if cfg.SupabaseConfigured() {
		store = storage.New(cfg.SupabaseURL, cfg.SupabaseKey)
	}
	if *inputFile != "" && store == nil {
		log.Fatal("-input-file requires SUPABASE_URL and SUPABASE_KEY")
	}

	ctx := context.Background()
	bar := newProgress()
	defer bar.clear()

	bar.update("Reading transcript...")
	text, inputName, err := readTranscript(ctx, store, *inputBucket, *input, *inputFile, *useStdin)
	if err != nil {
		bar.clear()
		log.WithError(err).Fatal("could not read transcript")
	}

	bar.update("Loading classifier label map...")
	clf := classify.New(cfg.HFAPIURL, modelID, cfg.HFToken)
	if err := clf.LoadLabelMap(ctx); err != nil {
		log.WithError(err).Warn("label map unavailable, raw labels only")
	}

	runner := pipeline.NewRunner(segment.New(cfg.SegmenterURL), clf, store)

	remoteBucket := ""
	if store != nil {
		remoteBucket = *outputBucket
	}
	bar.update("Scoring sentences...")
	sum, err := runner.Run(ctx, pipeline.Params{
		Kind:          kind,
		Text:          text,
		InputName:     inputName,
		BatchSize:     *batchSize,
		MaxLength:     *maxLength,
		Window:        *window,
		LocalPath:     *output,
		XLSXPath:      *xlsxPath,
		RemoteBucket:  remoteBucket,
		RemoteName:    *outputFile,
		TrackMetadata: *trackMetadata,
		MetadataTable: *metadataTable,
	})
	bar.clear()
	if err != nil {
		log.WithError(err).Fatal("analysis failed")
	}
	if sum.NothingToDo {
		fmt.Println("nothing to process: input contains no sentences")
		return
	}

	fmt.Printf("wrote %d rows to %s (mean %s_0_1 = %v)\n", sum.SentenceCount, sum.LocalPath, kind, sum.MeanScore01)
	if sum.XLSXPath != "" {
		fmt.Printf("workbook: %s\n", sum.XLSXPath)
	}
	if sum.RemoteName != "" {
		fmt.Printf("uploaded to %s/%s\n", remoteBucket, sum.RemoteName)
	}
	if sum.UploadErr != "" {
		fmt.Fprintf(os.Stderr, "warning: upload failed: %s (local result kept)\n", sum.UploadErr)
	}
}

func readTranscript(ctx context.Context, store *storage.Client, bucket, localPath, remotePath string, useStdin bool) (string, string, error) {
	switch {
	case localPath != "":
		data, err := os.ReadFile(localPath)
		if err != nil {
			return "", "", err
		}
		return string(data), localPath, nil
	case remotePath != "":
		data, err := store.Download(ctx, bucket, remotePath)
		if err != nil {
			return "", "", err
		}
		return string(data), remotePath, nil
	case useStdin:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", err
		}
		return string(data), "", nil
	}
	return "", "", fmt.Errorf("no transcript provided: use -input, -input-file, or -stdin")
}
