// Package secrets fetches secret values from Azure Key Vault and turns them
// into environment variables.
//
// The package provides:
//   - FetchSecrets: fetches many secrets concurrently with all-or-nothing
//     semantics
//   - FormatEnvVars: maps fetched secrets to environment variable names
//
// Usage:
//
//	client, err := keyvault.NewClient(vault, token, keyvault.Options{})
//	fetched, err := secrets.FetchSecrets(ctx, l, client, names, 0)
//	vars := secrets.FormatEnvVars(fetched)
package secrets
