package metrics

const namespace = "enricher"
