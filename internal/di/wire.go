//go:build wireinject
// +build wireinject

package di

import (
	"QuantData/pkg/config"
	"QuantData/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideCache,
	ProvideClickHouseClient,
	ProvideStorage,
	ProvidePublisher,
	ProvideCandleProcessor,
	ProvideHTTPClient,
)

var batchSet = wire.NewSet(
	ProvideCSVStore,
	ProvideManifestStore,
	ProvideExchange,
	ProvideFetcher,
	ProvideUpdater,
	ProvideValidator,
	ProvideSummarizer,
	ProvideOnePager,
	ProvideDownloader,
	ProvideImporter,
	ProvidePartitioner,
)

// InitializeToolkit wires the batch commands.
func InitializeToolkit(cfg *config.Config) (*Toolkit, func(), error) {
	wire.Build(
		infraSet,
		batchSet,
		wire.Struct(new(Toolkit), "*"),
	)
	return nil, nil, nil
}

// InitializeApp wires the long-running application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		batchSet,
		ProvideRedisClient,
		ProvideCandleReader,
		ProvideCandlesUseCase,
		ProvideJobPublisher,
		ProvideJobs,
		ProvideHTTPHandler,
		ProvideMarketStream,
		ProvideStreamCollector,
		ProvideKafkaConsumer,
		ProvideKafkaCandlesHandler,
		ProvideApp,
	)
	return nil, nil, nil
}
