// Package orchestrator runs one validation of a tuning-fork package.
//
// A run moves through fixed stages:
//
//	extract -> compile -> annotation + fidelity_params -> settings + dev_fidelity_params
//
// Extraction and compilation failures abort the run with an error and no
// Result. Everything after that records problems in the Result's Collector
// instead. The Annotation and FidelityParams checks run concurrently. The
// settings check only runs when the Annotation message passed, and the dev
// fidelity check only runs when the FidelityParams message passed.
//
// Example usage:
//
//	resolver := compiler.NewBuiltin(logger)
//	o, err := orchestrator.New(orchestrator.RequiredConfig{Resolver: resolver},
//	    orchestrator.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	result, err := o.ValidateArchive(ctx, "game.apk")
package orchestrator
