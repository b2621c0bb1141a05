// Package featurewatch rebuilds a feature.Engine when its registry file
// changes on disk.
//
//	r, err := featurewatch.New("features.yaml", build)
//	go r.Run(ctx)
//	api := featureapi.NewWithSource(r.Engine)
package featurewatch
