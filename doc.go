// Package nycprice is a machine learning pipeline that predicts the nightly price
// of NYC Airbnb listings and records every dataset, model and metric it produces
// in an experiment-tracking store.
//
// The pipeline runs these steps strictly in order, each in its own tracking run:
//
//	download               fetch the raw sample            -> sample.csv (raw_data)
//	basic_cleaning         price range, NYC box, dates     -> cleaned_data.csv (cleaned_data)
//	data_check             schema, values, KL drift, rows  -> pass or CheckFailedError
//	data_split             stratified train/test split     -> trainval_data.csv, test_data.csv (dataset)
//	train_random_forest    preprocessing + random forest   -> random_forest_export (model_export)
//	test_regression_model  MAE, R², RMSE, MAPE on test     -> run summary
//
// test_regression_model is not part of "all": it scores the export carrying the
// evaluation alias (prod by default), which is moved with
//
//	nycprice promote random_forest_export:v3 prod
//
// # Packages
//
//   - dataset: the string Frame passed between steps and the listings schema
//   - etl/download, etl/cleaning, etl/datacheck: ingestion and validation steps
//   - preprocessing: imputers, encoders, date delta, tf-idf and the ColumnTransformer
//   - sklearn/tree, sklearn/ensemble: the decision tree and random forest regressors
//   - sklearn/model_selection, sklearn/drift: splits, k-fold and KL divergence
//   - metrics: MAE, R², RMSE, MAPE and friends
//   - training, evaluation: the model steps and the export directory format
//   - tracking: runs, versioned artifacts and aliases over a blob Store and a Registry
//   - telemetry: OpenTelemetry tracing and the Prometheus step metrics
//   - config: YAML, .env, NYC_* variables and dotted overrides
//   - pipeline: step selection and orchestration
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// # Tracking backends
//
// Artifacts are stored content-addressed under blobs/sha256/ either on the local
// filesystem or in an S3-compatible bucket (MinIO). Run and artifact metadata live
// in a JSON index file or in PostgreSQL:
//
//	tracking:
//	  store: minio
//	  registry: postgres
//	  postgres: {host: localhost, port: "5432", user: nyc, name: tracking}
//	  minio: {endpoint: localhost:9000, bucket: nycprice}
//
// Secrets come from NYC_PG_PASSWORD and NYC_MINIO_SECRET_KEY, optionally loaded
// from a .env file.
package nycprice
