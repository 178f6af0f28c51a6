package messaging

// Stream and subject names for the ingestion worker.
const (
	// ScrapeJobStream holds inbound scrape jobs.
	ScrapeJobStream = "SCRAPE_JOBS"
	// ScrapeJobSubject is the single named work queue for scrape jobs.
	ScrapeJobSubject = "scrape_jobs"
	// ScrapeJobConsumer is the durable consumer shared by worker processes.
	ScrapeJobConsumer = "ingestion-worker"

	// ProductStream holds outbound normalized product batches.
	ProductStream = "PRODUCTS"
	// ProductIngestedSubject carries one ProductBatch per completed job.
	ProductIngestedSubject = "products.ingested"
)
