package azure

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"

	"github.com/diillson/cloud-plan-estimator/internal/domain/entity"
	"github.com/diillson/cloud-plan-estimator/internal/domain/repository"
)

// GlobalPartition is the only partition of a subscription. Resource Manager
// lists are subscription wide.
const GlobalPartition = "global"

// resourceTypes maps each category to the ARM types that make it up.
var resourceTypes = map[entity.Category][]string{
	entity.CategoryCompute:       {"Microsoft.Compute/virtualMachines"},
	entity.CategoryManagedDB:     {"Microsoft.Sql/servers", "Microsoft.Sql/managedInstances"},
	entity.CategoryObjectStorage: {"Microsoft.Storage/storageAccounts"},
	entity.CategoryKeyVault:      {"Microsoft.KeyVault/vaults"},
	entity.CategoryCosmosDB:      {"Microsoft.DocumentDB/databaseAccounts"},
	entity.CategoryOpenSourceDB: {
		"Microsoft.DBforPostgreSQL/flexibleServers",
		"Microsoft.DBforPostgreSQL/servers",
		"Microsoft.DBforMySQL/flexibleServers",
		"Microsoft.DBforMySQL/servers",
		"Microsoft.DBforMariaDB/servers",
	},
	entity.CategoryAPIManagement: {"Microsoft.ApiManagement/service"},
	entity.CategoryAIServices:    {"Microsoft.CognitiveServices/accounts"},
}

// Options configures the Azure adapter.
type Options struct {
	TenantID string
}

// AzureRepositoryImpl implementa o ProviderRepository sobre o Resource Manager.
type AzureRepositoryImpl struct {
	opts Options

	credOnce sync.Once
	cred     azcore.TokenCredential
	credErr  error

	mu          sync.Mutex
	clientCache map[string]interface{}
	locations   map[string]map[string]bool
	sizes       map[string]map[string]int
}

// NewAzureRepository cria o adapter de Azure.
func NewAzureRepository(opts Options) repository.ProviderRepository {
	return &AzureRepositoryImpl{
		opts:        opts,
		clientCache: make(map[string]interface{}),
		locations:   make(map[string]map[string]bool),
		sizes:       make(map[string]map[string]int),
	}
}

func (r *AzureRepositoryImpl) EnvironmentType() entity.EnvironmentType {
	return entity.EnvironmentAzure
}

func (r *AzureRepositoryImpl) PartitionCategories() []entity.Category {
	return []entity.Category{
		entity.CategoryCompute,
		entity.CategoryManagedDB,
		entity.CategoryObjectStorage,
		entity.CategoryManagedContainerCluster,
		entity.CategoryKeyVault,
		entity.CategoryCosmosDB,
		entity.CategoryOpenSourceDB,
		entity.CategoryAPIManagement,
		entity.CategoryAIServices,
	}
}

func (r *AzureRepositoryImpl) GlobalCategories() []entity.Category {
	return nil
}

func (r *AzureRepositoryImpl) credential() (azcore.TokenCredential, error) {
	r.credOnce.Do(func() {
		r.cred, r.credErr = azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
			TenantID: r.opts.TenantID,
		})
	})
	return r.cred, r.credErr
}

func (r *AzureRepositoryImpl) getServiceClient(subscriptionID, service string) (interface{}, error) {
	cacheKey := subscriptionID + "-" + service

	r.mu.Lock()
	if client, ok := r.clientCache[cacheKey]; ok {
		r.mu.Unlock()
		return client, nil
	}
	r.mu.Unlock()

	cred, err := r.credential()
	if err != nil {
		return nil, fmt.Errorf("%w: azure credential: %v", entity.ErrScopeUnavailable, err)
	}

	var client interface{}
	switch service {
	case "subscriptions":
		client, err = armsubscriptions.NewClient(cred, nil)
	case "resources":
		client, err = armresources.NewClient(subscriptionID, cred, nil)
	case "managedclusters":
		client, err = armcontainerservice.NewManagedClustersClient(subscriptionID, cred, nil)
	case "agentpools":
		client, err = armcontainerservice.NewAgentPoolsClient(subscriptionID, cred, nil)
	case "vmsizes":
		client, err = armcompute.NewVirtualMachineSizesClient(subscriptionID, cred, nil)
	default:
		return nil, fmt.Errorf("unsupported service: %s", service)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", service, err)
	}

	r.mu.Lock()
	r.clientCache[cacheKey] = client
	r.mu.Unlock()
	return client, nil
}

// ListScopeUnits lista as subscriptions visíveis para a credencial. Disabled
// and deleted subscriptions are left out.
func (r *AzureRepositoryImpl) ListScopeUnits(ctx context.Context) ([]entity.ScopeUnit, error) {
	client, err := r.getServiceClient("", "subscriptions")
	if err != nil {
		return nil, err
	}

	var scopes []entity.ScopeUnit
	pager := client.(*armsubscriptions.Client).NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "list subscriptions")
		}
		for _, sub := range page.Value {
			if sub == nil || sub.SubscriptionID == nil {
				continue
			}
			if sub.State != nil && !usableState(*sub.State) {
				continue
			}
			scope := entity.ScopeUnit{ID: *sub.SubscriptionID}
			if sub.DisplayName != nil {
				scope.DisplayName = *sub.DisplayName
			}
			scopes = append(scopes, scope)
		}
	}
	return scopes, nil
}

func usableState(s armsubscriptions.SubscriptionState) bool {
	switch s {
	case armsubscriptions.SubscriptionStateDisabled, armsubscriptions.SubscriptionStateDeleted:
		return false
	}
	return true
}

// Authorize valida o acesso lendo a própria subscription.
func (r *AzureRepositoryImpl) Authorize(ctx context.Context, scope entity.ScopeUnit) (entity.ScopeUnit, error) {
	client, err := r.getServiceClient("", "subscriptions")
	if err != nil {
		return scope, err
	}
	if _, err := client.(*armsubscriptions.Client).Get(ctx, scope.ID, nil); err != nil {
		return scope, scopeUnavailable(err, "subscription "+scope.Label())
	}
	cred, err := r.credential()
	if err != nil {
		return scope, fmt.Errorf("%w: %v", entity.ErrScopeUnavailable, err)
	}
	return scope.WithCredential(cred), nil
}

func (r *AzureRepositoryImpl) ListPartitions(ctx context.Context, scope entity.ScopeUnit) ([]string, error) {
	return []string{GlobalPartition}, nil
}

// RegionalPartitions is false: every list above is subscription wide.
func (r *AzureRepositoryImpl) RegionalPartitions() bool {
	return false
}

// typeFilter builds the $filter expression for a set of resource types.
func typeFilter(types []string) string {
	clauses := make([]string, len(types))
	for i, t := range types {
		clauses[i] = fmt.Sprintf("resourceType eq '%s'", t)
	}
	return strings.Join(clauses, " or ")
}

func (r *AzureRepositoryImpl) CountResources(ctx context.Context, scope entity.ScopeUnit, partition string, category entity.Category) (int, error) {
	if category == entity.CategoryManagedContainerCluster {
		clusters, err := r.ListClusters(ctx, scope, partition)
		return len(clusters), err
	}

	types, ok := resourceTypes[category]
	if !ok {
		return 0, fmt.Errorf("%w: category %s on Azure", entity.ErrNotSupported, category)
	}

	client, err := r.getServiceClient(scope.ID, "resources")
	if err != nil {
		return 0, err
	}

	count := 0
	pager := client.(*armresources.Client).NewListPager(&armresources.ClientListOptions{
		Filter: to.Ptr(typeFilter(types)),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return 0, classify(err, "list "+string(category))
		}
		count += len(page.Value)
	}
	return count, nil
}

// ListClusters devolve os IDs completos dos clusters AKS.
func (r *AzureRepositoryImpl) ListClusters(ctx context.Context, scope entity.ScopeUnit, partition string) ([]string, error) {
	client, err := r.getServiceClient(scope.ID, "managedclusters")
	if err != nil {
		return nil, err
	}

	var ids []string
	pager := client.(*armcontainerservice.ManagedClustersClient).NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "list AKS clusters")
		}
		for _, mc := range page.Value {
			if mc == nil || mc.ID == nil {
				continue
			}
			ids = append(ids, *mc.ID)
			if mc.Location != nil {
				r.rememberLocation(scope.ID, *mc.Location)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *AzureRepositoryImpl) rememberLocation(subscriptionID, location string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locations[subscriptionID] == nil {
		r.locations[subscriptionID] = make(map[string]bool)
	}
	r.locations[subscriptionID][location] = true
}

// ListNodeGroups lista os agent pools. Each pool is its own VM scale set, so
// the pool id doubles as the scaling group id.
func (r *AzureRepositoryImpl) ListNodeGroups(ctx context.Context, scope entity.ScopeUnit, partition, clusterID string) ([]entity.NodeGroup, error) {
	id, err := arm.ParseResourceID(clusterID)
	if err != nil {
		return nil, fmt.Errorf("%w: cluster id %q: %v", entity.ErrNotSupported, clusterID, err)
	}

	client, err := r.getServiceClient(scope.ID, "agentpools")
	if err != nil {
		return nil, err
	}

	var groups []entity.NodeGroup
	pager := client.(*armcontainerservice.AgentPoolsClient).NewListPager(id.ResourceGroupName, id.Name, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "list agent pools of "+id.Name)
		}
		for _, pool := range page.Value {
			if pool == nil || pool.Name == nil {
				continue
			}
			groups = append(groups, entity.NodeGroup{
				Name:            *pool.Name,
				ClusterID:       clusterID,
				ScalingGroupIDs: []string{clusterID + "/agentPools/" + *pool.Name},
			})
		}
	}
	return groups, nil
}

func (r *AzureRepositoryImpl) DescribeScalingGroup(ctx context.Context, scope entity.ScopeUnit, partition, groupID string) (entity.ScalingGroup, error) {
	id, err := arm.ParseResourceID(groupID)
	if err != nil || id.Parent == nil {
		return entity.ScalingGroup{}, fmt.Errorf("%w: agent pool id %q", entity.ErrNotSupported, groupID)
	}

	client, err := r.getServiceClient(scope.ID, "agentpools")
	if err != nil {
		return entity.ScalingGroup{}, err
	}

	resp, err := client.(*armcontainerservice.AgentPoolsClient).Get(ctx, id.ResourceGroupName, id.Parent.Name, id.Name, nil)
	if err != nil {
		return entity.ScalingGroup{}, classify(err, "get agent pool "+id.Name)
	}

	group := entity.ScalingGroup{ID: groupID}
	props := resp.AgentPool.Properties
	if props == nil || props.Count == nil || props.VMSize == nil {
		return group, nil
	}
	for i := 0; i < int(*props.Count); i++ {
		group.InstanceTypes = append(group.InstanceTypes, *props.VMSize)
	}
	group.CurrentInstanceCount = len(group.InstanceTypes)
	return group, nil
}

// ResolveCoresForInstanceType procura o tamanho nas localizações dos clusters
// da subscription.
func (r *AzureRepositoryImpl) ResolveCoresForInstanceType(ctx context.Context, scope entity.ScopeUnit, partition, instanceType string) (int, error) {
	r.mu.Lock()
	var locations []string
	for loc := range r.locations[scope.ID] {
		locations = append(locations, loc)
	}
	r.mu.Unlock()
	sort.Strings(locations)

	for _, loc := range locations {
		sizes, err := r.loadSizes(ctx, scope, loc)
		if err != nil {
			return 0, err
		}
		if cores, ok := sizes[strings.ToLower(instanceType)]; ok {
			return cores, nil
		}
	}
	return 0, fmt.Errorf("%w: vm size %s not found", entity.ErrNotSupported, instanceType)
}

func (r *AzureRepositoryImpl) loadSizes(ctx context.Context, scope entity.ScopeUnit, location string) (map[string]int, error) {
	key := scope.ID + "/" + location
	r.mu.Lock()
	if sizes, ok := r.sizes[key]; ok {
		r.mu.Unlock()
		return sizes, nil
	}
	r.mu.Unlock()

	client, err := r.getServiceClient(scope.ID, "vmsizes")
	if err != nil {
		return nil, err
	}

	sizes := make(map[string]int)
	pager := client.(*armcompute.VirtualMachineSizesClient).NewListPager(location, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "list vm sizes in "+location)
		}
		for _, size := range page.Value {
			if size == nil || size.Name == nil || size.NumberOfCores == nil {
				continue
			}
			sizes[strings.ToLower(*size.Name)] = int(*size.NumberOfCores)
		}
	}

	r.mu.Lock()
	r.sizes[key] = sizes
	r.mu.Unlock()
	return sizes, nil
}

// QueryTimeSeries não é suportado: o cálculo usa os cores sem ajuste.
func (r *AzureRepositoryImpl) QueryTimeSeries(ctx context.Context, scope entity.ScopeUnit, partition string, query entity.MetricQuery) ([]entity.MetricSample, error) {
	return nil, fmt.Errorf("%w: node count history on Azure", entity.ErrNotSupported)
}
