// Package classifier loads a remote image classifier from a JSON manifest.
//
// The manifest names the classifier, lists the labels it can emit and points
// at an inference endpoint:
//
//	{"name": "pillbox-v3", "labels": ["no_pill", "pill_morning"], "endpoint": "predict"}
//
// A relative endpoint is resolved against the manifest URL. Predictions are
// made by POSTing the raw frame bytes to the endpoint, which answers with
//
//	[{"label": "pill_morning", "probability": 0.91}, ...]
package classifier
