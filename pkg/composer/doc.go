// Package composer installs a PHP project's dependencies with Composer.
//
// The [Installer] is a no-op unless the manifest contains composer.json.
// Otherwise it writes the project to the work directory, downloads the
// requested composer.phar release, and runs it twice through PHP:
//
//	php composer global require hirak/prestissimo --prefer-dist
//	php composer install --no-dev --prefer-dist --optimize-autoloader
//
// Composer runs out of process and cannot report which files it added, so
// the installer finishes by re-scanning the work directory.
//
// Each step is reported to [observability.InstallHooks]; timing lives in
// the hooks, not in the installer.
package composer
