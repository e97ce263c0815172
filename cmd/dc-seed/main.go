package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/datacentricorg/datacentric-sub000/internal/backend/memdb"
	"github.com/datacentricorg/datacentric-sub000/internal/datasource"
	"github.com/datacentricorg/datacentric-sub000/internal/dcrecord"
	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

func main() {
	count := flag.Int("count", 0, "number of datasets to create")
	prefix := flag.String("prefix", "seed", "dataset name prefix")
	flag.Parse()

	if *count <= 0 {
		fmt.Println("Usage: ./dc-seed -count=<n> [-prefix=name]")
		os.Exit(1)
	}

	log := buildLogger()
	log = log.Named("main")

	store := memdb.New()
	ds, err := datasource.New(store, dcrecord.NewStructReflector(), log, datasource.Config{
		Name:     "dc-seed",
		Instance: datasource.InstanceDev,
	})
	if err != nil {
		log.Fatal("datasource construction failed", zap.Error(err))
	}

	ctx := context.Background()
	var parent recordid.RecordId
	for i := 0; i < *count; i++ {
		iterStart := time.Now()

		name := fmt.Sprintf("%s-%03d", *prefix, i)
		imports := []recordid.RecordId{}
		if !parent.IsEmpty() {
			imports = append(imports, parent)
		}

		id, err := ds.SaveDataSet(ctx, dcrecord.DataSetData{Name: name, Imports: imports})
		if err != nil {
			log.Fatal("dataset creation failed",
				zap.String("name", name),
				zap.Error(err),
			)
		}
		parent = id

		log.Info("dataset created",
			zap.String("name", name),
			zap.String("id", id.String()),
			zap.Int("seeded", i+1),
			zap.Int("total", *count),
			zap.Duration("took", time.Since(iterStart)),
		)
	}
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
